package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Parent is the billed guardian for one or more students.
type Parent struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_parents_email" json:"email"`
	Phone     string       `gorm:"type:text" json:"phone,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Parent) TableName() string { return "parents" }

// Student is an enrolled student. Invoices are issued per student and
// addressed to the student's parent.
type Student struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ParentID  snowflake.ID `gorm:"not null;index" json:"parent_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Level     string       `gorm:"type:text" json:"level,omitempty"`
	School    string       `gorm:"type:text" json:"school,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Student) TableName() string { return "students" }
