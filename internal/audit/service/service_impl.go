package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tutorbase/tutorbase/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

	genID *snowflake.Node
}

func NewService(p ServiceParam) auditdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("audit.service"),

		genID: p.GenID,
	}
}

func (s *Service) AuditLog(
	ctx context.Context,
	actorType auditdomain.ActorType,
	actorID string,
	action string,
	targetType string,
	targetID *string,
	metadata map[string]any,
) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil
	}
	if actorType == "" {
		actorType = auditdomain.ActorTypeSystem
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(actorType),
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  time.Now().UTC(),
	}
	if actor := strings.TrimSpace(actorID); actor != "" {
		entry.ActorID = &actor
	}
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		entry.Metadata[key] = value
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	tx := s.db.WithContext(ctx).Model(&auditdomain.AuditLog{})

	if action := strings.TrimSpace(filter.Action); action != "" {
		tx = tx.Where("action = ?", action)
	}
	if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
		tx = tx.Where("target_type = ?", targetType)
	}
	if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
		tx = tx.Where("target_id = ?", targetID)
	}
	if actorType := strings.TrimSpace(filter.ActorType); actorType != "" {
		tx = tx.Where("actor_type = ?", actorType)
	}
	if filter.StartAt != nil {
		tx = tx.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		tx = tx.Where("created_at < ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		tx = tx.Where("(created_at, id) < (?, ?)", filter.Cursor.CreatedAt.UTC(), filter.Cursor.ID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var entries []*auditdomain.AuditLog
	if err := tx.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
