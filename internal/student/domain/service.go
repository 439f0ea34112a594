package domain

import (
	"context"
	"errors"

	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type CreateParentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateStudentRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
	Level    string `json:"level"`
	School   string `json:"school"`
}

type ListStudentRequest struct {
	PageToken string
	PageSize  int32
	ParentID  string
}

type ListStudentResponse struct {
	pagination.PageInfo
	Students []Student `json:"students"`
}

type Service interface {
	CreateParent(ctx context.Context, req CreateParentRequest) (*Parent, error)
	CreateStudent(ctx context.Context, req CreateStudentRequest) (*Student, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	ListStudents(ctx context.Context, req ListStudentRequest) (ListStudentResponse, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidParent   = errors.New("invalid_parent")
	ErrInvalidStudent  = errors.New("invalid_student")
	ErrParentNotFound  = errors.New("parent_not_found")
	ErrStudentNotFound = errors.New("student_not_found")
)
