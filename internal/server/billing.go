package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tutorbase/tutorbase/internal/billingrun"
)

type runBillingRequest struct {
	StudentID string `json:"student_id"`
}

// @Summary      Run Billing
// @Description  Bill a student's completed lessons into the current period's invoice and accrue tutor payouts
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body runBillingRequest true "Run Billing Request"
// @Success      200  {object}  billingrun.RunResult
// @Router       /billing/run [post]
func (s *Server) RunBilling(c *gin.Context) {
	if s.runner == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	var req runBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil || studentID == 0 {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid student_id"))
		return
	}

	var result billingrun.RunResult
	result, err = s.runner.RunForStudent(c.Request.Context(), studentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := result.InvoiceID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "billing.run", "invoice", &targetID, map[string]any{
			"student_id":      req.StudentID,
			"invoice_created": result.InvoiceCreated,
			"applied_lines":   result.AppliedLines,
			"failed_accruals": result.FailedAccruals,
		})
	}

	status := http.StatusOK
	if result.FailedAccruals > 0 {
		// Partial success: the invoice committed but some tutor groups did
		// not accrue. Callers retry via the same endpoint.
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"data": result})
}
