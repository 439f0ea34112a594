package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
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

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	tutorrepo repository.Repository[tutordomain.Tutor]
}

func NewService(p ServiceParam) tutordomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tutor.service"),

		genID:     p.GenID,
		tutorrepo: repository.ProvideStore[tutordomain.Tutor](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req tutordomain.CreateTutorRequest) (*tutordomain.Tutor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tutordomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, tutordomain.ErrInvalidEmail
	}
	if req.HourlyRateCents <= 0 {
		return nil, tutordomain.ErrInvalidRate
	}

	now := time.Now().UTC()
	record := &tutordomain.Tutor{
		ID:              s.genID.Generate(),
		Name:            name,
		Email:           email,
		Subjects:        strings.TrimSpace(req.Subjects),
		HourlyRateCents: req.HourlyRateCents,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.tutorrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) UpdateRate(ctx context.Context, req tutordomain.UpdateTutorRateRequest) (*tutordomain.Tutor, error) {
	if req.HourlyRateCents <= 0 {
		return nil, tutordomain.ErrInvalidRate
	}
	record, err := s.GetByID(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	record.HourlyRateCents = req.HourlyRateCents
	record.UpdatedAt = time.Now().UTC()
	if err := s.tutorrepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*tutordomain.Tutor, error) {
	tutorID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || tutorID == 0 {
		return nil, tutordomain.ErrInvalidTutor
	}
	record, err := s.tutorrepo.FindOne(ctx, &tutordomain.Tutor{ID: tutorID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, tutordomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req tutordomain.ListTutorRequest) (tutordomain.ListTutorResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.tutorrepo.Find(ctx, &tutordomain.Tutor{},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return tutordomain.ListTutorResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *tutordomain.Tutor) string {
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

	records := make([]tutordomain.Tutor, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := tutordomain.ListTutorResponse{Tutors: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
