package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/mail"
	"github.com/chatline/chatline-server/internal/payment"
	"github.com/chatline/chatline-server/internal/store"
)

// AdminHandlers provides HTTP handlers for payment review and UPI settings.
type AdminHandlers struct {
	store  store.PaymentStore
	mailer mail.Mailer
	log    *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(st store.PaymentStore, mailer mail.Mailer, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		store:  st,
		mailer: mailer,
		log:    logger,
	}
}

// ListTransactions lists all payments, newest first.
// GET /api/admin/transactions
func (h *AdminHandlers) ListTransactions(c *gin.Context) {
	payments, err := h.store.ListPayments(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list payments")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		response = append(response, paymentResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

// GetTransaction returns a single payment.
// GET /api/admin/transactions/:id
func (h *AdminHandlers) GetTransaction(c *gin.Context) {
	p, err := h.store.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "transaction not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load payment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, paymentResponse(p))
}

// UpdateTransactionRequest sets the review outcome of a payment.
type UpdateTransactionRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	Status        string `json:"status" binding:"required,oneof=approved rejected"`
	// NotifyEmail, when set, receives the status notification.
	NotifyEmail string `json:"notifyEmail" binding:"omitempty,email"`
}

// UpdateTransaction approves or rejects a payment and sends the email
// notification. Mail failures are logged, not surfaced.
// PUT /api/admin/transactions
func (h *AdminHandlers) UpdateTransaction(c *gin.Context) {
	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "transactionId and a valid status are required"})
		return
	}

	ctx := c.Request.Context()
	status := store.PaymentStatus(req.Status)
	if err := h.store.SetPaymentStatus(ctx, req.TransactionID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "transaction not found"})
			return
		}
		h.log.Error().Err(err).Str("payment_id", req.TransactionID).Msg("failed to update payment status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if req.NotifyEmail != "" && h.mailer != nil {
		p, err := h.store.GetPayment(ctx, req.TransactionID)
		if err == nil {
			subject := fmt.Sprintf("Payment %s", req.Status)
			body := fmt.Sprintf("Your payment of %s has been %s.", payment.FormatAmount(p.Amount), req.Status)
			if err := h.mailer.Send(req.NotifyEmail, subject, body); err != nil {
				h.log.Warn().Err(err).Str("payment_id", p.ID).Msg("failed to send status email")
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "transaction " + req.Status})
}

// SetUpiRequest configures the active payee UPI id.
type SetUpiRequest struct {
	UpiID string `json:"upiId" binding:"required"`
}

// SetUpi activates a payee UPI id, deactivating any other.
// POST /api/admin/upi
func (h *AdminHandlers) SetUpi(c *gin.Context) {
	var req SetUpiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "upiId is required"})
		return
	}

	if err := h.store.SetActiveUpiID(c.Request.Context(), req.UpiID); err != nil {
		h.log.Error().Err(err).Msg("failed to set upi id")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "UPI ID updated successfully"})
}

// GetUpi returns the active payee UPI id, null when none is configured.
// GET /api/admin/upi
func (h *AdminHandlers) GetUpi(c *gin.Context) {
	upiID, err := h.store.ActiveUpiID(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"upiId": nil})
			return
		}
		h.log.Error().Err(err).Msg("failed to load upi id")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upiId": upiID})
}
