package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seller is the letterhead printed on tax invoices. A single row is used.
type Seller struct {
	ID                 int       `gorm:"primary_key" json:"id"`
	Name               string    `gorm:"size:255;not null" json:"name"`
	Gstin              string    `gorm:"column:gst_no;size:20" json:"gstin"`
	Address            string    `gorm:"type:text" json:"address"`
	Mobile             string    `gorm:"size:50" json:"mobile"`
	SubHeader          string    `gorm:"size:500" json:"subHeader"`
	BankName           string    `gorm:"size:255" json:"bankName"`
	AccountNumber      string    `gorm:"column:account_no;size:50" json:"accountNumber"`
	IfscCode           string    `gorm:"size:20" json:"ifscCode"`
	TermsAndConditions string    `gorm:"column:terms;type:text" json:"termsAndConditions"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewSeller struct {
	Name               string `json:"name" binding:"required"`
	Gstin              string `json:"gstin"`
	Address            string `json:"address"`
	Mobile             string `json:"mobile"`
	SubHeader          string `json:"subHeader"`
	BankName           string `json:"bankName"`
	AccountNumber      string `json:"accountNumber"`
	IfscCode           string `json:"ifscCode"`
	TermsAndConditions string `json:"termsAndConditions"`
}

// StateGstMaster maps an Indian state name to its two-digit GST state code.
type StateGstMaster struct {
	ID        int    `gorm:"primary_key" json:"id"`
	StateName string `gorm:"size:100;not null;uniqueIndex" json:"stateName"`
	GstCode   string `gorm:"size:2;not null" json:"gstCode"`
}

func (StateGstMaster) TableName() string { return "state_gst_master" }

// GetSeller returns the configured seller, or nil when none is configured.
func GetSeller(ctx context.Context) (*Seller, error) {
	var seller Seller
	err := config.GetDB().WithContext(ctx).Order("id ASC").First(&seller).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &seller, nil
}

func UpsertSeller(ctx context.Context, input *NewSeller) (*Seller, error) {
	seller, err := GetSeller(ctx)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		seller = &Seller{}
	}
	seller.Name = input.Name
	seller.Gstin = strings.ToUpper(strings.TrimSpace(input.Gstin))
	seller.Address = input.Address
	seller.Mobile = input.Mobile
	seller.SubHeader = input.SubHeader
	seller.BankName = input.BankName
	seller.AccountNumber = input.AccountNumber
	seller.IfscCode = input.IfscCode
	seller.TermsAndConditions = input.TermsAndConditions
	if err := config.GetDB().WithContext(ctx).Save(seller).Error; err != nil {
		return nil, err
	}
	return seller, nil
}

// GetStateGstCodes returns state name (upper-cased) to GST code.
func GetStateGstCodes(ctx context.Context) (map[string]string, error) {
	var rows []*StateGstMaster
	if err := config.GetDB().WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(rows))
	for _, r := range rows {
		codes[strings.ToUpper(strings.TrimSpace(r.StateName))] = r.GstCode
	}
	return codes, nil
}

// DefaultStateGstCodes are the GST state codes published by the GST council.
var DefaultStateGstCodes = map[string]string{
	"JAMMU AND KASHMIR":                        "01",
	"HIMACHAL PRADESH":                         "02",
	"PUNJAB":                                   "03",
	"CHANDIGARH":                               "04",
	"UTTARAKHAND":                              "05",
	"HARYANA":                                  "06",
	"DELHI":                                    "07",
	"RAJASTHAN":                                "08",
	"UTTAR PRADESH":                            "09",
	"BIHAR":                                    "10",
	"SIKKIM":                                   "11",
	"ARUNACHAL PRADESH":                        "12",
	"NAGALAND":                                 "13",
	"MANIPUR":                                  "14",
	"MIZORAM":                                  "15",
	"TRIPURA":                                  "16",
	"MEGHALAYA":                                "17",
	"ASSAM":                                    "18",
	"WEST BENGAL":                              "19",
	"JHARKHAND":                                "20",
	"ODISHA":                                   "21",
	"CHHATTISGARH":                             "22",
	"MADHYA PRADESH":                           "23",
	"GUJARAT":                                  "24",
	"DADRA AND NAGAR HAVELI AND DAMAN AND DIU": "26",
	"MAHARASHTRA":                              "27",
	"KARNATAKA":                                "29",
	"GOA":                                      "30",
	"LAKSHADWEEP":                              "31",
	"KERALA":                                   "32",
	"TAMIL NADU":                               "33",
	"PUDUCHERRY":                               "34",
	"ANDAMAN AND NICOBAR ISLANDS":              "35",
	"TELANGANA":                                "36",
	"ANDHRA PRADESH":                           "37",
	"LADAKH":                                   "38",
}

// SeedStateGstMaster upserts codes by state name and returns the number of rows written.
func SeedStateGstMaster(ctx context.Context, codes map[string]string) (int, error) {
	rows := make([]*StateGstMaster, 0, len(codes))
	for name, code := range codes {
		rows = append(rows, &StateGstMaster{StateName: strings.ToUpper(strings.TrimSpace(name)), GstCode: code})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := config.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"gst_code"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
