// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the format of Report.ReportDate (AAAA-MM-JJ).
const DateLayout = "2006-01-02"

// AllModels are the tables of the report history database.
var AllModels []any

// Report is a community report attached to a canonical phone number.
type Report struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// RID is the public identifier exposed by the API and report events.
	RID         string    `gorm:"column:rid;size:36;uniqueIndex" json:"rid"`
	PhoneNumber string    `gorm:"size:16;not null;index:idx_reports_phone_number_spam,priority:1" json:"phone_number"`
	ReportDate  *string   `gorm:"size:10" json:"report_date,omitempty"`
	IsSpam      bool      `gorm:"not null;default:false;index:idx_reports_phone_number_spam,priority:2" json:"is_spam"`
	Comment     *string   `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Report) TableName() string { return "reports" }

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.RID == "" {
		r.RID = uuid.New().String()
	}
	return nil
}

// AfterFind trims dates read back as timestamps from databases created
// with a DATE column type.
func (r *Report) AfterFind(tx *gorm.DB) error {
	if r.ReportDate != nil && len(*r.ReportDate) > len(DateLayout) {
		date := (*r.ReportDate)[:len(DateLayout)]
		r.ReportDate = &date
	}
	return nil
}

func init() {
	AllModels = append(AllModels, &Report{})
}
