package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

type Config struct {
	BaseURL         string // e.g. https://pay.pesapal.com/v3/api
	ConsumerKey     string
	ConsumerSecret  string
	CallbackBaseURL string
	IPNID           string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// Client talks to the Pesapal v3 REST API. Every operation requests a fresh
// token, so a token never outlives the call sequence it was issued for.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	ipnID          string
	timeout        time.Duration
	http           *http.Client
}

// NewClient validates the full checkout configuration.
func NewClient(cfg Config) (*Client, error) {
	switch {
	case cfg.CallbackBaseURL == "":
		return nil, &CredentialsError{Field: "PESAPAL_CALLBACK_BASE_URL"}
	case cfg.IPNID == "":
		return nil, &CredentialsError{Field: "PESAPAL_IPN_ID"}
	}
	return NewSetupClient(cfg)
}

// NewSetupClient only needs the API credentials; used to register IPN URLs
// before an IPN id exists.
func NewSetupClient(cfg Config) (*Client, error) {
	switch {
	case cfg.BaseURL == "":
		return nil, &CredentialsError{Field: "PESAPAL_BASE_URL"}
	case cfg.ConsumerKey == "":
		return nil, &CredentialsError{Field: "PESAPAL_CONSUMER_KEY"}
	case cfg.ConsumerSecret == "":
		return nil, &CredentialsError{Field: "PESAPAL_CONSUMER_SECRET"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		ipnID:          cfg.IPNID,
		timeout:        cfg.Timeout,
		http:           hc,
	}, nil
}

type apiError struct {
	Type    string `json:"error_type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) present() bool {
	return e != nil && (e.Code != "" || e.Message != "")
}

type tokenReq struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type tokenResp struct {
	Token      string    `json:"token"`
	ExpiryDate string    `json:"expiryDate"`
	Error      *apiError `json:"error"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
}

// Authenticate exchanges the consumer key/secret for a bearer token.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	body, _ := json.Marshal(tokenReq{ConsumerKey: c.consumerKey, ConsumerSecret: c.consumerSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Auth/RequestToken", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: "auth", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &CredentialsError{Detail: string(raw)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &GatewayError{Op: "auth", StatusCode: resp.StatusCode, Raw: string(raw)}
	}
	var out tokenResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "auth", StatusCode: resp.StatusCode, Raw: string(raw), Err: err}
	}
	if out.Error.present() || out.Token == "" {
		return nil, &CredentialsError{Detail: string(raw)}
	}
	tok := &Token{Token: out.Token}
	if t, err := time.Parse(time.RFC3339Nano, out.ExpiryDate); err == nil {
		tok.ExpiresAt = t
	}
	return tok, nil
}

type submitResp struct {
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	RedirectURL       string    `json:"redirect_url"`
	Error             *apiError `json:"error"`
	Status            string    `json:"status"`
}

// SubmitOrder creates a hosted checkout. A failure here is never "pending".
func (c *Client) SubmitOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	if order.NotificationID == "" {
		order.NotificationID = c.ipnID
	}
	raw, status, err := c.do(ctx, "submit_order", http.MethodPost, "/Transactions/SubmitOrderRequest", order)
	if err != nil {
		return nil, err
	}
	log.Printf("[PESAPAL] SubmitOrderRequest ref=%s status=%d body=%s", order.ID, status, string(raw))
	var out submitResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "submit_order", StatusCode: status, Raw: string(raw), Err: err}
	}
	if out.Error.present() || out.OrderTrackingID == "" || out.RedirectURL == "" {
		return nil, &GatewayError{Op: "submit_order", StatusCode: status, Raw: string(raw)}
	}
	return &OrderResponse{
		TrackingID:  out.OrderTrackingID,
		Reference:   out.MerchantReference,
		RedirectURL: out.RedirectURL,
		Status:      out.Status,
	}, nil
}

type statusResp struct {
	PaymentMethod            string    `json:"payment_method"`
	Amount                   float64   `json:"amount"`
	ConfirmationCode         string    `json:"confirmation_code"`
	PaymentStatusDescription string    `json:"payment_status_description"`
	Description              string    `json:"description"`
	StatusCode               int       `json:"status_code"`
	MerchantReference        string    `json:"merchant_reference"`
	Currency                 string    `json:"currency"`
	Error                    *apiError `json:"error"`
	Status                   string    `json:"status"`
}

// GetStatus is the only trusted answer to "has money moved".
func (c *Client) GetStatus(ctx context.Context, trackingID string) (*TransactionStatus, error) {
	if trackingID == "" {
		return nil, &GatewayError{Op: "get_status", Err: errors.New("tracking id required")}
	}
	path := "/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(trackingID)
	raw, status, err := c.do(ctx, "get_status", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out statusResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "get_status", StatusCode: status, Raw: string(raw), Err: err}
	}
	// Pesapal reports a failed payment through the error object too, so only
	// treat it as a gateway error when there is no status to read.
	if out.Error.present() && out.PaymentStatusDescription == "" && out.StatusCode == 0 {
		return nil, &GatewayError{Op: "get_status", StatusCode: status, Raw: string(raw)}
	}
	return &TransactionStatus{
		PaymentStatus:     NormalizeStatus(out.PaymentStatusDescription, out.StatusCode),
		Description:       out.Description,
		PaymentMethod:     out.PaymentMethod,
		ConfirmationCode:  out.ConfirmationCode,
		MerchantReference: out.MerchantReference,
		Amount:            out.Amount,
		Currency:          out.Currency,
		Raw:               json.RawMessage(raw),
	}, nil
}

type registerIPNReq struct {
	URL              string `json:"url"`
	NotificationType string `json:"ipn_notification_type"`
}

// RegisterIPN registers url as an IPN endpoint; method is GET or POST.
func (c *Client) RegisterIPN(ctx context.Context, ipnURL, method string) (*IPN, error) {
	if method == "" {
		method = http.MethodGet
	}
	raw, status, err := c.do(ctx, "register_ipn", http.MethodPost, "/URLSetup/RegisterIPN", registerIPNReq{URL: ipnURL, NotificationType: method})
	if err != nil {
		return nil, err
	}
	var out struct {
		IPN
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "register_ipn", StatusCode: status, Raw: string(raw), Err: err}
	}
	if out.Error.present() || out.ID == "" {
		return nil, &GatewayError{Op: "register_ipn", StatusCode: status, Raw: string(raw)}
	}
	return &out.IPN, nil
}

func (c *Client) ListIPNs(ctx context.Context) ([]IPN, error) {
	raw, status, err := c.do(ctx, "list_ipns", http.MethodGet, "/URLSetup/GetIpnList", nil)
	if err != nil {
		return nil, err
	}
	var out []IPN
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: "list_ipns", StatusCode: status, Raw: string(raw), Err: err}
	}
	return out, nil
}

// do sends an authorized JSON request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.authorizedClient(ctx).Do(req)
	if err != nil {
		var credErr *CredentialsError
		if errors.As(err, &credErr) {
			return nil, 0, credErr
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return nil, 0, gwErr
		}
		return nil, 0, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		log.Printf("[PESAPAL] %s %s status=%d body=%s", method, path, resp.StatusCode, string(raw))
		return nil, resp.StatusCode, &GatewayError{Op: op, StatusCode: resp.StatusCode, Raw: string(raw)}
	}
	return raw, resp.StatusCode, nil
}
