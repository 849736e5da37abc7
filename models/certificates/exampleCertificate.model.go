package certificates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Example certificate statuses. PENDING is the initial state; SUCCESS and
// ERROR are terminal.
const (
	ExampleStatusPending = "PENDING"
	ExampleStatusSuccess = "SUCCESS"
	ExampleStatusError   = "ERROR"
)

// ExampleCertificate is a test certificate generated to verify that a course
// run's certificate pipeline works. It belongs to no learner; the queue
// proves authorization to update it by echoing back the access key it was
// handed at submission time.
type ExampleCertificate struct {
	gorm.Model
	UUID        string `json:"uuid" gorm:"column:uuid;unique;not null"`
	AccessKey   string `json:"-" gorm:"index;not null"`
	CourseID    string `json:"course_id" gorm:"index;not null"`
	Description string `json:"description" gorm:"default:''"`
	FullName    string `json:"full_name" gorm:"default:''"`
	TemplatePDF string `json:"template_pdf" gorm:"default:''"`
	Status      string `json:"status" gorm:"default:'PENDING'"`
	DownloadURL string `json:"download_url" gorm:"default:''"`
	ErrorReason string `json:"error_reason" gorm:"default:''"`
	IsDeleted   bool   `gorm:"default:false"`
}

// NewExampleCertificate mints a pending record with a fresh identifier and
// access key.
func NewExampleCertificate(courseID, description, fullName, templatePDF string) *ExampleCertificate {
	return &ExampleCertificate{
		UUID:        hexUUID(),
		AccessKey:   hexUUID(),
		CourseID:    courseID,
		Description: description,
		FullName:    fullName,
		TemplatePDF: templatePDF,
		Status:      ExampleStatusPending,
	}
}

// UpdateStatus applies a queue callback result. Only the terminal statuses
// are accepted; re-applying a terminal status is allowed and the last write
// wins. The download URL is kept only for successes and the error reason only
// for failures.
func (c *ExampleCertificate) UpdateStatus(status, errorReason, downloadURL string) error {
	if status != ExampleStatusSuccess && status != ExampleStatusError {
		return fmt.Errorf("example certificate status must be %q or %q, got %q",
			ExampleStatusSuccess, ExampleStatusError, status)
	}

	c.Status = status
	if status == ExampleStatusSuccess {
		c.DownloadURL = downloadURL
		c.ErrorReason = ""
	} else {
		c.ErrorReason = errorReason
		c.DownloadURL = ""
	}
	return nil
}

func hexUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
