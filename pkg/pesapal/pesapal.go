package pesapal

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusFailed    PaymentStatus = "FAILED"
	StatusInvalid   PaymentStatus = "INVALID"
	StatusPending   PaymentStatus = "PENDING"
)

// Terminal reports whether the gateway will not change this status any more.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusInvalid
}

type Token struct {
	Token     string
	ExpiresAt time.Time
}

type BillingAddress struct {
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
}

// OrderRequest is the body of SubmitOrderRequest. Amount is in major units.
type OrderRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	NotificationID string         `json:"notification_id"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type OrderResponse struct {
	TrackingID  string
	Reference   string
	RedirectURL string
	Status      string
}

type TransactionStatus struct {
	PaymentStatus     PaymentStatus
	Description       string
	PaymentMethod     string
	ConfirmationCode  string
	MerchantReference string
	Amount            float64
	Currency          string
	Raw               json.RawMessage
}

type IPN struct {
	ID               string `json:"ipn_id"`
	URL              string `json:"url"`
	NotificationType string `json:"ipn_notification_type_description"`
	Status           string `json:"ipn_status_description"`
	CreatedDate      string `json:"created_date"`
}

// Gateway is what the order and callback services need from Pesapal.
type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	GetStatus(ctx context.Context, trackingID string) (*TransactionStatus, error)
}

// NormalizeStatus maps payment_status_description, falling back to status_code
// (0 invalid, 1 completed, 2 failed, 3 reversed).
func NormalizeStatus(description string, code int) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(description)) {
	case "COMPLETED":
		return StatusCompleted
	case "FAILED", "REVERSED":
		return StatusFailed
	case "INVALID":
		return StatusInvalid
	case "PENDING":
		return StatusPending
	}
	switch code {
	case 1:
		return StatusCompleted
	case 2, 3:
		return StatusFailed
	}
	return StatusPending
}
