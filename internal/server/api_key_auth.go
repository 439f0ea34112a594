package server

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
)

const (
	contextAuthTypeKey = "auth_type"
	contextAPIKeyIDKey = "api_key_id"

	keyCacheTTL = 30 * time.Second
)

type authorizedKey struct {
	ID      snowflake.ID
	KeyHash string
}

// APIKeyRequired authenticates requests with a bearer API key. Lookups are
// cached briefly by hash so hot callers do not hit the database per request.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := apikeydomain.HashAPIKey(parts[1])

		record, ok := s.keyCache.Get(hash)
		if !ok {
			loaded, err := s.lookupAPIKey(c.Request.Context(), hash)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			record = loaded
			if record.ID != 0 {
				s.keyCache.Set(hash, record, keyCacheTTL)
			}
		}

		if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.KeyHash), []byte(hash)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, contextAuthTypeKey, "api_key")
		ctx = context.WithValue(ctx, contextAPIKeyIDKey, int64(record.ID))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) lookupAPIKey(ctx context.Context, hash string) (authorizedKey, error) {
	now := time.Now().UTC()

	var record authorizedKey
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, key_hash
		 FROM api_keys
		 WHERE key_hash = ?
		   AND is_active = true
		   AND (expires_at IS NULL OR expires_at > ?)
		 LIMIT 1`,
		hash,
		now,
	).Scan(&record).Error
	if err != nil {
		return authorizedKey{}, err
	}
	return record, nil
}

func actorFromContext(c *gin.Context) string {
	if value := c.Request.Context().Value(contextAPIKeyIDKey); value != nil {
		if id, ok := value.(int64); ok {
			return snowflake.ID(id).String()
		}
	}
	return "unknown"
}
