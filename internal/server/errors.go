package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
	"github.com/tutorbase/tutorbase/internal/billingrun"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	tutordomain "github.com/tutorbase/tutorbase/internal/tutor/domain"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Message }

var (
	ErrUnauthorized       = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrNotFound           = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrServiceUnavailable = &apiError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
)

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "invalid request",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

// notFoundErrors map to 404; everything else in domainErrors is a 400.
var notFoundErrors = []error{
	studentdomain.ErrParentNotFound,
	studentdomain.ErrStudentNotFound,
	tutordomain.ErrNotFound,
	lessondomain.ErrNotFound,
	invoicedomain.ErrInvoiceNotFound,
	payoutdomain.ErrPayoutNotFound,
	apikeydomain.ErrNotFound,
	billingrun.ErrStudentNotFound,
}

var badRequestErrors = []error{
	studentdomain.ErrInvalidName,
	studentdomain.ErrInvalidEmail,
	studentdomain.ErrInvalidParent,
	studentdomain.ErrInvalidStudent,
	tutordomain.ErrInvalidName,
	tutordomain.ErrInvalidEmail,
	tutordomain.ErrInvalidRate,
	tutordomain.ErrInvalidTutor,
	lessondomain.ErrInvalidStudent,
	lessondomain.ErrInvalidTutor,
	lessondomain.ErrInvalidSubject,
	lessondomain.ErrInvalidDuration,
	lessondomain.ErrInvalidScheduledAt,
	lessondomain.ErrInvalidLesson,
	lessondomain.ErrInvalidStatus,
	invoicedomain.ErrEmptyLineItems,
	invoicedomain.ErrInvalidAmount,
	invoicedomain.ErrInvalidStudent,
	invoicedomain.ErrInvalidParent,
	invoicedomain.ErrInvalidInvoiceNumber,
	invoicedomain.ErrInvalidInvoiceID,
	invoicedomain.ErrInvalidStatus,
	payoutdomain.ErrEmptyLineItems,
	payoutdomain.ErrInvalidAmount,
	payoutdomain.ErrInvalidInvoice,
	payoutdomain.ErrInvalidTutor,
	payoutdomain.ErrInvalidPayoutID,
	apikeydomain.ErrInvalidName,
	apikeydomain.ErrInvalidKeyID,
	billingrun.ErrInvalidStudent,
}

var conflictErrors = []error{
	lessondomain.ErrNotScheduled,
	lessondomain.ErrAlreadyBilled,
	invoicedomain.ErrInvoiceNotPending,
	payoutdomain.ErrPayoutNotPending,
	billingrun.ErrNoBillableLessons,
}

// AbortWithError translates domain sentinels into HTTP responses. Unknown
// errors become opaque 500s so database details never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	for _, sentinel := range notFoundErrors {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": apiError{
				Code:    sentinel.Error(),
				Message: sentinel.Error(),
			}})
			return
		}
	}
	for _, sentinel := range badRequestErrors {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apiError{
				Code:    sentinel.Error(),
				Message: sentinel.Error(),
			}})
			return
		}
	}
	for _, sentinel := range conflictErrors {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": apiError{
				Code:    sentinel.Error(),
				Message: sentinel.Error(),
			}})
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": apiError{
		Code:    "internal_error",
		Message: "internal error",
	}})
}

// parseOptionalTime parses an RFC3339 or date-only value. Date-only values
// resolve to the start of day, or the end of day when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Nanosecond)
	}
	return &ts, nil
}
