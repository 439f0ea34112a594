package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LessonStatus tracks a lesson from booking through billing.
type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
	LessonStatusBilled    LessonStatus = "BILLED"
	LessonStatusCancelled LessonStatus = "CANCELLED"
)

// Lesson is one delivered (or scheduled) tutoring session. HourlyRateCents is
// snapshotted from the tutor at booking time so later rate changes cannot
// reprice past lessons.
type Lesson struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	StudentID       snowflake.ID  `gorm:"not null;index" json:"student_id"`
	TutorID         snowflake.ID  `gorm:"not null;index" json:"tutor_id"`
	Subject         string        `gorm:"type:text;not null" json:"subject"`
	ScheduledAt     time.Time     `gorm:"not null" json:"scheduled_at"`
	DurationMinutes int           `gorm:"not null" json:"duration_minutes"`
	HourlyRateCents int64         `gorm:"not null" json:"hourly_rate_cents"`
	Status          LessonStatus  `gorm:"type:text;not null;default:'SCHEDULED';index" json:"status"`
	CompletedAt     *time.Time    `gorm:"column:completed_at" json:"completed_at,omitempty"`
	InvoiceID       *snowflake.ID `gorm:"column:invoice_id;index" json:"invoice_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lesson) TableName() string { return "lessons" }
