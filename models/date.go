package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Date is a calendar date exchanged as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if len(s) > len(BillDateLayout) {
		// tolerate full timestamps
		s = s[:len(BillDateLayout)]
	}
	t, err := time.ParseInLocation(BillDateLayout, s, time.Local)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(BillDateLayout))
}

func (d *Date) TimePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// OrToday returns the date, or today's date when unset.
func (d *Date) OrToday() time.Time {
	if d == nil || d.IsZero() {
		y, m, day := time.Now().Date()
		return time.Date(y, m, day, 0, 0, 0, 0, time.Local)
	}
	return d.Time
}
