package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment tracks a user's enrollment in a course run with progress
type Enrollment struct {
	gorm.Model
	UserID      uint       `json:"user_id" gorm:"index;not null"`
	CourseID    string     `json:"course_id" gorm:"index;not null"`
	Mode        string     `json:"mode" gorm:"default:'honor'"`
	Status      string     `json:"status" gorm:"default:'ENROLLED'"` // ENROLLED, IN_PROGRESS, COMPLETED
	Progress    float64    `json:"progress" gorm:"default:0"`        // Completion percentage (0-100)
	CompletedAt *time.Time `json:"completed_at"`
	IsDeleted   bool       `gorm:"default:false"`
}
