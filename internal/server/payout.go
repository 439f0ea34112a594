package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tutorbase/tutorbase/internal/events"
	ledgerdomain "github.com/tutorbase/tutorbase/internal/ledger/domain"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
	"go.uber.org/zap"
)

// @Summary      Current Payouts
// @Description  List every tutor's accrued payout for the current period
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  []payoutdomain.Payout
// @Router       /payouts/current [get]
func (s *Server) ListCurrentPayouts(c *gin.Context) {
	resp, err := s.payoutSvc.CurrentPeriod(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Payout
// @Description  Get payout by ID
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Payout ID"
// @Success      200  {object}  payoutdomain.Payout
// @Router       /payouts/{id} [get]
func (s *Server) GetPayout(c *gin.Context) {
	resp, err := s.payoutSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// recordPayoutPaid posts the settlement ledger entry and publishes the
// payout.paid event. Settlement bookkeeping is derived state, so failures
// are logged and the payout stays marked paid.
func (s *Server) recordPayoutPaid(ctx context.Context, payout *payoutdomain.Payout) {
	if s.ledgerSvc != nil && payout.PayoutAmountCents > 0 {
		err := func() error {
			payableID, err := s.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeTutorPayable, "Tutor Payable")
			if err != nil {
				return err
			}
			cashID, err := s.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeCash, "Cash")
			if err != nil {
				return err
			}
			currency := s.cfg.Currency
			if currency == "" {
				currency = "MYR"
			}
			return s.ledgerSvc.CreateEntry(ctx, ledgerdomain.SourceTypePayoutSettled, payout.ID, currency, time.Now().UTC(), []ledgerdomain.LedgerEntryLine{
				{AccountID: payableID, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: payout.PayoutAmountCents},
				{AccountID: cashID, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: payout.PayoutAmountCents},
			})
		}()
		if err != nil {
			s.log.Warn("payout settlement ledger posting failed",
				zap.String("payout_id", payout.ID.String()),
				zap.Error(err),
			)
		}
	}

	if s.outbox != nil {
		payload := events.PayoutPaidPayload{
			PayoutID:          payout.ID.String(),
			TutorID:           payout.TutorID.String(),
			PayoutAmountCents: payout.PayoutAmountCents,
		}
		err := s.outbox.Publish(ctx, events.Event{
			Type:      events.EventPayoutPaid,
			Payload:   payload.ToMap(),
			DedupeKey: fmt.Sprintf("%s:%s", events.EventPayoutPaid, payout.ID),
		})
		if err != nil {
			s.log.Warn("outbox publish failed", zap.String("event", events.EventPayoutPaid), zap.Error(err))
		}
	}
}

// @Summary      Mark Payout Paid
// @Description  Settle a pending tutor payout
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Payout ID"
// @Success      200  {object}  payoutdomain.Payout
// @Router       /payouts/{id}/pay [post]
func (s *Server) MarkPayoutPaid(c *gin.Context) {
	resp, err := s.payoutSvc.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordPayoutPaid(c.Request.Context(), resp)

	if s.auditSvc != nil {
		targetID := c.Param("id")
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "payout.mark_paid", "payout", &targetID, map[string]any{
			"payout_amount_cents": resp.PayoutAmountCents,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
