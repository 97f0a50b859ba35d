package config

import (
	"os"
	"strings"
)

const (
	NotificationModeAsync  = "async"
	NotificationModeOutbox = "outbox"
)

// NotificationMode selects how bill notifications leave the request path.
//
// Set via env:
// - NOTIFICATION_MODE=async (default) | outbox
func NotificationMode() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFICATION_MODE")))
	if v == NotificationModeOutbox {
		return NotificationModeOutbox
	}
	return NotificationModeAsync
}

// AllowedLocations lists the sites a user may be registered to.
//
// Set via env:
// - ALLOWED_LOCATIONS="Bhondsi,Tapugada"
func AllowedLocations() []string {
	raw := strings.TrimSpace(os.Getenv("ALLOWED_LOCATIONS"))
	if raw == "" {
		raw = "Bhondsi,Tapugada"
	}
	return SplitAndTrim(raw)
}

// IsAllowedLocation matches case-insensitively and returns the canonical spelling.
func IsAllowedLocation(location string) (string, bool) {
	location = strings.TrimSpace(location)
	for _, l := range AllowedLocations() {
		if strings.EqualFold(l, location) {
			return l, true
		}
	}
	return "", false
}

// PhoneRegion is the default region used to parse customer phone numbers.
func PhoneRegion() string {
	if v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION"))); v != "" {
		return v
	}
	return "IN"
}

func EnvBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
