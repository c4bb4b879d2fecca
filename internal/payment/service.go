package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/chatline/chatline-server/internal/store"
)

var (
	// ErrNoUpiConfigured is returned when no active payee UPI id exists.
	ErrNoUpiConfigured = errors.New("no UPI ID configured")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// qrSize is the pixel width of generated QR codes.
const qrSize = 256

// Service generates UPI payment QR codes and tracks submitted transactions.
type Service struct {
	store     store.PaymentStore
	payeeName string
}

// NewService creates a payment service. payeeName fills the pn= field of
// generated UPI deep links.
func NewService(st store.PaymentStore, payeeName string) *Service {
	return &Service{
		store:     st,
		payeeName: payeeName,
	}
}

// Initiate builds a UPI deep link for the given amount, renders it as a QR
// code and persists the pending payment. Amount is in paise.
func (s *Service) Initiate(ctx context.Context, amount int64) (*store.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	upiID, err := s.store.ActiveUpiID(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoUpiConfigured
		}
		return nil, fmt.Errorf("load active upi id: %w", err)
	}

	link := UpiLink(upiID, s.payeeName, amount)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	p := &store.Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		UpiID:  upiID,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Status: store.PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	// Re-read for the store-assigned timestamp.
	return s.store.GetPayment(ctx, p.ID)
}

// SubmitTransaction attaches the payer-submitted transaction reference to a
// pending payment.
func (s *Service) SubmitTransaction(ctx context.Context, paymentID, transactionID string) error {
	return s.store.SetPaymentTransaction(ctx, paymentID, transactionID)
}

// UpiLink builds a upi://pay deep link. Amount is in paise and rendered as
// a rupee decimal in the am= field.
func UpiLink(upiID, payeeName string, amount int64) string {
	q := url.Values{}
	q.Set("pa", upiID)
	q.Set("pn", payeeName)
	q.Set("am", FormatAmount(amount))
	q.Set("cu", "INR")
	q.Set("tn", "Payment for services")
	return "upi://pay?" + q.Encode()
}

// FormatAmount renders paise as a rupee decimal string, e.g. 15050 -> "150.50".
func FormatAmount(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}
