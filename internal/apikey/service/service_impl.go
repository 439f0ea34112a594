package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
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

	genID   *snowflake.Node
	keyrepo repository.Repository[apikeydomain.APIKey]
}

func NewService(p ServiceParam) apikeydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("apikey.service"),

		genID:   p.GenID,
		keyrepo: repository.ProvideStore[apikeydomain.APIKey](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateAPIKeyRequest) (apikeydomain.CreateAPIKeyResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apikeydomain.CreateAPIKeyResponse{}, apikeydomain.ErrInvalidName
	}

	secret, err := apikeydomain.NewSecret()
	if err != nil {
		return apikeydomain.CreateAPIKeyResponse{}, err
	}

	record := apikeydomain.APIKey{
		ID:        s.genID.Generate(),
		Name:      name,
		KeyHash:   apikeydomain.HashAPIKey(secret),
		Prefix:    apikeydomain.DisplayPrefix(secret),
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keyrepo.Create(ctx, &record); err != nil {
		return apikeydomain.CreateAPIKeyResponse{}, err
	}

	return apikeydomain.CreateAPIKeyResponse{Key: record, Secret: secret}, nil
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.APIKey, error) {
	items, err := s.keyrepo.Find(ctx, &apikeydomain.APIKey{})
	if err != nil {
		return nil, err
	}
	keys := make([]apikeydomain.APIKey, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		keys = append(keys, *item)
	}
	return keys, nil
}

func (s *Service) Revoke(ctx context.Context, id string) error {
	keyID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || keyID == 0 {
		return apikeydomain.ErrInvalidKeyID
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE api_keys SET is_active = false WHERE id = ?`,
		keyID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apikeydomain.ErrNotFound
	}
	return nil
}
