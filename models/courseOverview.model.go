package models

import (
	"time"

	"gorm.io/gorm"
)

// Certificate display behaviors configurable per course run. Anything outside
// this set is treated as the default end-of-course behavior.
const (
	CertDisplayEarlyWithInfo = "early_with_info"
	CertDisplayEarlyNoInfo   = "early_no_info"
	CertDisplayEnd           = "end"
)

// CourseOverview caches the course-run facts needed without loading course
// content: display name, schedule and certificate configuration.
type CourseOverview struct {
	gorm.Model
	CourseID                    string     `json:"course_id" gorm:"unique;not null"`
	DisplayName                 string     `json:"display_name" gorm:"default:''"`
	Org                         string     `json:"org" gorm:"default:''"`
	SelfPaced                   bool       `json:"self_paced" gorm:"default:false"`
	EndDate                     *time.Time `json:"end_date"`
	CertificatesDisplayBehavior string     `json:"certificates_display_behavior" gorm:"default:'end'"`
	CertificatesShowBeforeEnd   bool       `json:"certificates_show_before_end" gorm:"default:false"`
	CertificateAvailableDate    *time.Time `json:"certificate_available_date"`
	CertHTMLViewEnabled         bool       `json:"cert_html_view_enabled" gorm:"default:false"`
	IsDeleted                   bool       `gorm:"default:false"`
}

// HasEnded reports whether the run's end date has passed. Runs without an end
// date never end.
func (c *CourseOverview) HasEnded() bool {
	return c.EndDate != nil && c.EndDate.Before(time.Now())
}
