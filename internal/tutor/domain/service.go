package domain

import (
	"context"
	"errors"

	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type CreateTutorRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Subjects        string `json:"subjects"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

type UpdateTutorRateRequest struct {
	TutorID         string `json:"tutor_id"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

type ListTutorRequest struct {
	PageToken string
	PageSize  int32
}

type ListTutorResponse struct {
	pagination.PageInfo
	Tutors []Tutor `json:"tutors"`
}

type Service interface {
	Create(ctx context.Context, req CreateTutorRequest) (*Tutor, error)
	UpdateRate(ctx context.Context, req UpdateTutorRateRequest) (*Tutor, error)
	GetByID(ctx context.Context, id string) (*Tutor, error)
	List(ctx context.Context, req ListTutorRequest) (ListTutorResponse, error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRate  = errors.New("invalid_rate")
	ErrInvalidTutor = errors.New("invalid_tutor")
	ErrNotFound     = errors.New("tutor_not_found")
)
