package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	tutordomain "github.com/tutorbase/tutorbase/internal/tutor/domain"
	"github.com/tutorbase/tutorbase/pkg/db/option"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
	"github.com/tutorbase/tutorbase/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	StudentSvc studentdomain.Service
	TutorSvc   tutordomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	studentSvc studentdomain.Service
	tutorSvc   tutordomain.Service
	lessonrepo repository.Repository[lessondomain.Lesson]
}

func NewService(p ServiceParam) lessondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("lesson.service"),

		genID:      p.GenID,
		studentSvc: p.StudentSvc,
		tutorSvc:   p.TutorSvc,
		lessonrepo: repository.ProvideStore[lessondomain.Lesson](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req lessondomain.CreateLessonRequest) (*lessondomain.Lesson, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, lessondomain.ErrInvalidSubject
	}
	if req.DurationMinutes <= 0 {
		return nil, lessondomain.ErrInvalidDuration
	}
	if req.ScheduledAt.IsZero() {
		return nil, lessondomain.ErrInvalidScheduledAt
	}

	student, err := s.resolveStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	tutor, err := s.resolveTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &lessondomain.Lesson{
		ID:              s.genID.Generate(),
		StudentID:       student.ID,
		TutorID:         tutor.ID,
		Subject:         subject,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		HourlyRateCents: tutor.HourlyRateCents,
		Status:          lessondomain.LessonStatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.lessonrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Complete(ctx context.Context, id string) (*lessondomain.Lesson, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == lessondomain.LessonStatusBilled {
		return nil, lessondomain.ErrAlreadyBilled
	}
	if record.Status != lessondomain.LessonStatusScheduled {
		return nil, lessondomain.ErrNotScheduled
	}

	now := time.Now().UTC()
	record.Status = lessondomain.LessonStatusCompleted
	record.CompletedAt = &now
	record.UpdatedAt = now
	if err := s.lessonrepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*lessondomain.Lesson, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == lessondomain.LessonStatusBilled {
		return nil, lessondomain.ErrAlreadyBilled
	}
	if record.Status != lessondomain.LessonStatusScheduled {
		return nil, lessondomain.ErrNotScheduled
	}

	record.Status = lessondomain.LessonStatusCancelled
	record.UpdatedAt = time.Now().UTC()
	if err := s.lessonrepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*lessondomain.Lesson, error) {
	lessonID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || lessonID == 0 {
		return nil, lessondomain.ErrInvalidLesson
	}
	record, err := s.lessonrepo.FindOne(ctx, &lessondomain.Lesson{ID: lessonID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, lessondomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req lessondomain.ListLessonRequest) (lessondomain.ListLessonResponse, error) {
	filter := &lessondomain.Lesson{}

	if strings.TrimSpace(req.StudentID) != "" {
		studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
		if err != nil || studentID == 0 {
			return lessondomain.ListLessonResponse{}, lessondomain.ErrInvalidStudent
		}
		filter.StudentID = studentID
	}
	if strings.TrimSpace(req.TutorID) != "" {
		tutorID, err := snowflake.ParseString(strings.TrimSpace(req.TutorID))
		if err != nil || tutorID == 0 {
			return lessondomain.ListLessonResponse{}, lessondomain.ErrInvalidTutor
		}
		filter.TutorID = tutorID
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch lessondomain.LessonStatus(strings.ToUpper(status)) {
		case lessondomain.LessonStatusScheduled,
			lessondomain.LessonStatusCompleted,
			lessondomain.LessonStatusBilled,
			lessondomain.LessonStatusCancelled:
			filter.Status = lessondomain.LessonStatus(strings.ToUpper(status))
		default:
			return lessondomain.ListLessonResponse{}, lessondomain.ErrInvalidStatus
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.lessonrepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return lessondomain.ListLessonResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *lessondomain.Lesson) string {
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

	records := make([]lessondomain.Lesson, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := lessondomain.ListLessonResponse{Lessons: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) resolveStudent(ctx context.Context, id string) (*studentdomain.Student, error) {
	student, err := s.studentSvc.GetStudent(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, studentdomain.ErrInvalidStudent), errors.Is(err, studentdomain.ErrStudentNotFound):
			return nil, lessondomain.ErrInvalidStudent
		default:
			return nil, err
		}
	}
	return student, nil
}

func (s *Service) resolveTutor(ctx context.Context, id string) (*tutordomain.Tutor, error) {
	tutor, err := s.tutorSvc.GetByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, tutordomain.ErrInvalidTutor), errors.Is(err, tutordomain.ErrNotFound):
			return nil, lessondomain.ErrInvalidTutor
		default:
			return nil, err
		}
	}
	return tutor, nil
}
