package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/tutorbase/tutorbase/internal/ledger/domain"
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

	genID *snowflake.Node
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ledger.service"),

		genID: p.GenID,
	}
}

func (s *Service) CreateEntry(
	ctx context.Context,
	sourceType string,
	sourceID snowflake.ID,
	currency string,
	occurredAt time.Time,
	lines []ledgerdomain.LedgerEntryLine,
) error {
	sourceType = strings.TrimSpace(sourceType)
	if sourceType == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return ledgerdomain.ErrInvalidCurrency
	}
	if occurredAt.IsZero() {
		return ledgerdomain.ErrInvalidOccurredAt
	}
	if err := ledgerdomain.ValidateBalanced(lines); err != nil {
		return err
	}
	for _, line := range lines {
		if line.AccountID == 0 {
			return ledgerdomain.ErrInvalidAccount
		}
	}

	entryID := s.genID.Generate()
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entries (id, source_type, source_id, currency, occurred_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entryID,
			sourceType,
			sourceID,
			currency,
			occurredAt.UTC(),
			now,
		).Error; err != nil {
			return err
		}

		for _, line := range lines {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO ledger_entry_lines (id, ledger_entry_id, account_id, direction, amount, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				entryID,
				line.AccountID,
				line.Direction,
				line.Amount,
				now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) EnsureAccount(ctx context.Context, code string, name string) (snowflake.ID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ledgerdomain.ErrInvalidAccount
	}

	var accountID snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE code = ?`,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := s.db.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, code, name, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		s.genID.Generate(),
		code,
		name,
		time.Now().UTC(),
	).Error; err != nil {
		return 0, err
	}

	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE code = ?`,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.New("ledger_account_not_found")
	}
	return accountID, nil
}
