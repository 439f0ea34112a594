package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	"github.com/tutorbase/tutorbase/pkg/db/option"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
	"github.com/tutorbase/tutorbase/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	parentrepo  repository.Repository[studentdomain.Parent]
	studentrepo repository.Repository[studentdomain.Student]
}

func NewService(p ServiceParam) studentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("student.service"),

		genID:       p.GenID,
		parentrepo:  repository.ProvideStore[studentdomain.Parent](p.DB),
		studentrepo: repository.ProvideStore[studentdomain.Student](p.DB),
	}
}

func (s *Service) CreateParent(ctx context.Context, req studentdomain.CreateParentRequest) (*studentdomain.Parent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, studentdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, studentdomain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	record := &studentdomain.Parent{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.parentrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) CreateStudent(ctx context.Context, req studentdomain.CreateStudentRequest) (*studentdomain.Student, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, studentdomain.ErrInvalidName
	}
	parentID, err := parseID(req.ParentID)
	if err != nil {
		return nil, studentdomain.ErrInvalidParent
	}

	parent, err := s.parentrepo.FindOne(ctx, &studentdomain.Parent{ID: parentID})
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, studentdomain.ErrParentNotFound
	}

	now := time.Now().UTC()
	record := &studentdomain.Student{
		ID:        s.genID.Generate(),
		ParentID:  parentID,
		Name:      name,
		Level:     strings.TrimSpace(req.Level),
		School:    strings.TrimSpace(req.School),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.studentrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetStudent(ctx context.Context, id string) (*studentdomain.Student, error) {
	studentID, err := parseID(id)
	if err != nil {
		return nil, studentdomain.ErrInvalidStudent
	}
	record, err := s.studentrepo.FindOne(ctx, &studentdomain.Student{ID: studentID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, studentdomain.ErrStudentNotFound
	}
	return record, nil
}

func (s *Service) ListStudents(ctx context.Context, req studentdomain.ListStudentRequest) (studentdomain.ListStudentResponse, error) {
	filter := &studentdomain.Student{}
	if strings.TrimSpace(req.ParentID) != "" {
		parentID, err := parseID(req.ParentID)
		if err != nil {
			return studentdomain.ListStudentResponse{}, studentdomain.ErrInvalidParent
		}
		filter.ParentID = parentID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.studentrepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return studentdomain.ListStudentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *studentdomain.Student) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	records := make([]studentdomain.Student, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := studentdomain.ListStudentResponse{Students: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, studentdomain.ErrInvalidStudent
	}
	return id, nil
}
