package domain

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey authenticates admin and integration callers. Only the sha256 hash of
// the secret is stored.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	KeyHash    string       `gorm:"type:text;not null;uniqueIndex:ux_api_keys_hash" json:"-"`
	Prefix     string       `gorm:"type:text;not null" json:"prefix"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt  *time.Time   `gorm:"column:expires_at" json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

type CreateAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateAPIKeyResponse carries the plaintext secret exactly once, at creation.
type CreateAPIKeyResponse struct {
	Key    APIKey `json:"key"`
	Secret string `json:"secret"`
}

type Service interface {
	Create(ctx context.Context, req CreateAPIKeyRequest) (CreateAPIKeyResponse, error)
	List(ctx context.Context) ([]APIKey, error)
	Revoke(ctx context.Context, id string) error
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrNotFound     = errors.New("api_key_not_found")
)

const secretPrefix = "tb_"

// HashAPIKey returns the stored form of an API key secret.
func HashAPIKey(secret string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(secret)))
	return hex.EncodeToString(sum[:])
}

// NewSecret generates a fresh API key secret.
func NewSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

// DisplayPrefix is the non-sensitive fragment shown in listings.
func DisplayPrefix(secret string) string {
	if len(secret) <= len(secretPrefix)+6 {
		return secret
	}
	return secret[:len(secretPrefix)+6]
}
