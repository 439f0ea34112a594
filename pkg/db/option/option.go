package option

import (
	"fmt"
	"strings"

	"github.com/tutorbase/tutorbase/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option mutates a gorm query before execution.
type Option func(*gorm.DB) *gorm.DB

// QuerySortBy restricts sortable columns for list queries.
type QuerySortBy struct {
	Allow map[string]bool
	Field string
	Desc  bool
}

// ApplyPagination applies cursor paging. Queries fetch one extra record so the
// caller can detect whether more pages exist.
func ApplyPagination(p pagination.Pagination) Option {
	return func(tx *gorm.DB) *gorm.DB {
		pageSize := p.PageSize
		if pageSize <= 0 {
			pageSize = 50
		}

		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil {
				tx = tx.Where(
					"(created_at, id) < (?, ?)",
					cursor.CreatedAt,
					cursor.ID,
				)
			}
		}

		return tx.Limit(pageSize + 1)
	}
}

// WithSortBy orders results by an allowed column, newest first by default.
func WithSortBy(sort QuerySortBy) Option {
	return func(tx *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		direction := "DESC"
		if sort.Desc {
			direction = "DESC"
		} else if sort.Field != "" {
			direction = "ASC"
		}
		return tx.Order(fmt.Sprintf("%s %s, id %s", field, direction, direction))
	}
}

// WithLimit caps the number of records returned.
func WithLimit(limit int) Option {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}
