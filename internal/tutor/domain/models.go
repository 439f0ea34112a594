package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tutor delivers lessons and accrues a monthly payout. HourlyRateCents is the
// default rate; each lesson snapshots the rate in force when it was booked.
type Tutor struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"type:text;not null" json:"name"`
	Email           string       `gorm:"type:text;not null;uniqueIndex:ux_tutors_email" json:"email"`
	Subjects        string       `gorm:"type:text" json:"subjects,omitempty"`
	HourlyRateCents int64        `gorm:"not null" json:"hourly_rate_cents"`
	Active          bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tutor) TableName() string { return "tutors" }
