package domain

import (
	"context"
	"errors"
	"time"

	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type CreateLessonRequest struct {
	StudentID       string    `json:"student_id"`
	TutorID         string    `json:"tutor_id"`
	Subject         string    `json:"subject"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type ListLessonRequest struct {
	PageToken string
	PageSize  int32
	StudentID string
	TutorID   string
	Status    string
}

type ListLessonResponse struct {
	pagination.PageInfo
	Lessons []Lesson `json:"lessons"`
}

type Service interface {
	Create(ctx context.Context, req CreateLessonRequest) (*Lesson, error)
	Complete(ctx context.Context, id string) (*Lesson, error)
	Cancel(ctx context.Context, id string) (*Lesson, error)
	GetByID(ctx context.Context, id string) (*Lesson, error)
	List(ctx context.Context, req ListLessonRequest) (ListLessonResponse, error)
}

var (
	ErrInvalidStudent     = errors.New("invalid_student")
	ErrInvalidTutor       = errors.New("invalid_tutor")
	ErrInvalidSubject     = errors.New("invalid_subject")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrInvalidScheduledAt = errors.New("invalid_scheduled_at")
	ErrInvalidLesson      = errors.New("invalid_lesson")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrNotFound           = errors.New("lesson_not_found")
	ErrNotScheduled       = errors.New("lesson_not_scheduled")
	ErrAlreadyBilled      = errors.New("lesson_already_billed")
)
