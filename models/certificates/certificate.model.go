package certificates

import (
	"gorm.io/gorm"
)

// Certificate generation statuses. Reported to learners as-is; the generation
// worker owns the transitions.
const (
	StatusDeleted      = "deleted"
	StatusDownloadable = "downloadable"
	StatusError        = "error"
	StatusGenerating   = "generating"
	StatusNotPassing   = "notpassing"
	StatusRequesting   = "requesting"
	StatusRestricted   = "restricted"
	StatusUnavailable  = "unavailable"
)

// GeneratedCertificate represents a student's certificate record for a single
// course run. At most one row exists per (user, course run).
type GeneratedCertificate struct {
	gorm.Model
	UserID      uint   `json:"user_id" gorm:"index;not null"`
	CourseID    string `json:"course_id" gorm:"index;not null"`
	Status      string `json:"status" gorm:"default:'unavailable'"`
	VerifyUUID  string `json:"verify_uuid" gorm:"default:''"`
	Key         string `json:"-" gorm:"index;default:''"` // token handed to the legacy queue, kept for callback lookup
	DownloadURL string `json:"download_url" gorm:"default:''"`
	Grade       string `json:"grade" gorm:"default:''"`
	Mode        string `json:"mode" gorm:"default:'honor'"`
	Name        string `json:"name" gorm:"default:''"` // learner name as printed on the certificate
	ErrorReason string `json:"error_reason" gorm:"default:''"`
	IsDeleted   bool   `gorm:"default:false"`
}
