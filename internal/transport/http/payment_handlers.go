package http

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/payment"
	"github.com/chatline/chatline-server/internal/store"
)

// PaymentHandlers provides HTTP handlers for UPI payments.
type PaymentHandlers struct {
	service *payment.Service
	store   store.PaymentStore
	log     *zerolog.Logger
}

// NewPaymentHandlers creates a new payment handlers instance.
func NewPaymentHandlers(svc *payment.Service, st store.PaymentStore, logger *zerolog.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		service: svc,
		store:   st,
		log:     logger,
	}
}

// InitiatePaymentRequest carries the rupee amount to pay.
type InitiatePaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	PaymentID     string    `json:"paymentId"`
	Amount        string    `json:"amount"`
	UpiID         string    `json:"upiId"`
	QRCode        string    `json:"qrCode"`
	TransactionID string    `json:"transactionId,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func paymentResponse(p *store.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID:     p.ID,
		Amount:        payment.FormatAmount(p.Amount),
		UpiID:         p.UpiID,
		QRCode:        p.QRCode,
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}

// Initiate generates a payment QR code.
// POST /api/payments
func (h *PaymentHandlers) Initiate(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount is required"})
		return
	}

	paise := int64(math.Round(req.Amount * 100))
	p, err := h.service.Initiate(c.Request.Context(), paise)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNoUpiConfigured):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no UPI ID configured"})
		case errors.Is(err, payment.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
		default:
			h.log.Error().Err(err).Msg("failed to initiate payment")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, paymentResponse(p))
}

// SubmitTransactionRequest attaches a UTR to a pending payment.
type SubmitTransactionRequest struct {
	PaymentID     string `json:"paymentId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
}

// SubmitTransaction records the payer-submitted transaction id.
// POST /api/payments/transaction
func (h *PaymentHandlers) SubmitTransaction(c *gin.Context) {
	var req SubmitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "paymentId and transactionId are required"})
		return
	}

	if err := h.service.SubmitTransaction(c.Request.Context(), req.PaymentID, req.TransactionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
			return
		}
		h.log.Error().Err(err).Str("payment_id", req.PaymentID).Msg("failed to submit transaction")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "transaction submitted, payment under review"})
}

// Get returns a single payment.
// GET /api/payments/:id
func (h *PaymentHandlers) Get(c *gin.Context) {
	p, err := h.store.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load payment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, paymentResponse(p))
}
