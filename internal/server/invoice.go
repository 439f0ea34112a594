package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tutorbase/tutorbase/internal/events"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	ledgerdomain "github.com/tutorbase/tutorbase/internal/ledger/domain"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
	"go.uber.org/zap"
)

// @Summary      List Invoices
// @Description  List invoices with optional filters
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        student_id  query     string  false  "Student ID"
// @Param        status      query     string  false  "Status"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  invoicedomain.ListInvoiceResponse
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		StudentID string `form:"student_id"`
		Status    string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		StudentID: strings.TrimSpace(query.StudentID),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Invoice
// @Description  Get invoice by ID
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoice Line Items
// @Description  List the billed lessons on an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  []invoicedomain.InvoiceLineItem
// @Router       /invoices/{id}/line-items [get]
func (s *Server) ListInvoiceLineItems(c *gin.Context) {
	resp, err := s.invoiceSvc.ListLineItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Mark Invoice Paid
// @Description  Settle a pending invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/pay [post]
func (s *Server) MarkInvoicePaid(c *gin.Context) {
	resp, err := s.invoiceSvc.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordInvoicePaid(c.Request.Context(), resp)

	if s.auditSvc != nil {
		targetID := c.Param("id")
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "invoice.mark_paid", "invoice", &targetID, map[string]any{
			"total_cents": resp.TotalCents,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// recordInvoicePaid posts the settlement ledger entry (cash in, receivable
// cleared) and publishes the invoice.paid event. Both are best-effort: the
// invoice is already PAID and settlement bookkeeping can be rebuilt from it.
func (s *Server) recordInvoicePaid(ctx context.Context, invoice *invoicedomain.Invoice) {
	if s.ledgerSvc != nil && invoice.TotalCents > 0 {
		err := func() error {
			cashID, err := s.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeCash, "Cash")
			if err != nil {
				return err
			}
			receivableID, err := s.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeAccountsReceivable, "Accounts Receivable")
			if err != nil {
				return err
			}
			return s.ledgerSvc.CreateEntry(ctx, ledgerdomain.SourceTypeInvoicePaid, invoice.ID, invoice.Currency, time.Now().UTC(), []ledgerdomain.LedgerEntryLine{
				{AccountID: cashID, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: invoice.TotalCents},
				{AccountID: receivableID, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: invoice.TotalCents},
			})
		}()
		if err != nil {
			s.log.Warn("invoice settlement ledger posting failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
		}
	}

	if s.outbox != nil {
		payload := events.InvoicePaidPayload{
			InvoiceID:  invoice.ID.String(),
			StudentID:  invoice.StudentID.String(),
			TotalCents: invoice.TotalCents,
		}
		err := s.outbox.Publish(ctx, events.Event{
			Type:      events.EventInvoicePaid,
			Payload:   payload.ToMap(),
			DedupeKey: fmt.Sprintf("%s:%s", events.EventInvoicePaid, invoice.ID),
		})
		if err != nil {
			s.log.Warn("outbox publish failed", zap.String("event", events.EventInvoicePaid), zap.Error(err))
		}
	}
}
