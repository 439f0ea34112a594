package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bootstrapKeyName = "bootstrap"

// EnsureBootstrapAPIKey creates an initial API key when none exist, so a fresh
// deployment can authenticate its first request. The secret is printed to the
// log exactly once; afterwards only the hash survives.
func EnsureBootstrapAPIKey(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&apikeydomain.APIKey{}).
			Where("is_active = ?", true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		secret, err := apikeydomain.NewSecret()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		key := apikeydomain.APIKey{
			ID:        node.Generate(),
			Name:      bootstrapKeyName,
			KeyHash:   apikeydomain.HashAPIKey(secret),
			Prefix:    apikeydomain.DisplayPrefix(secret),
			IsActive:  true,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&key).Error; err != nil {
			return err
		}

		if log != nil {
			log.Warn("bootstrap api key created; store this secret now, it will not be shown again",
				zap.String("api_key_id", key.ID.String()),
				zap.String("secret", secret),
			)
		}
		return nil
	})
}
