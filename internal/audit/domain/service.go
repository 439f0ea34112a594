package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}

// Service records and lists audit entries. Writes are best-effort: handlers
// ignore audit failures rather than failing the underlying action.
type Service interface {
	AuditLog(
		ctx context.Context,
		actorType ActorType,
		actorID string,
		action string,
		targetType string,
		targetID *string,
		metadata map[string]any,
	) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
