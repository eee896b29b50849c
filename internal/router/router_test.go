package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"
	"nguvuhire/internal/testutil"
	"nguvuhire/pkg/pesapal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu        sync.Mutex
	submitErr error
	statusErr error
	statuses  map[string]*pesapal.TransactionStatus
	submits   int
	lookups   int
}

func (g *fakeGateway) SubmitOrder(_ context.Context, req pesapal.OrderRequest) (*pesapal.OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.submits++
	trk := fmt.Sprintf("trk-%d", g.submits)
	return &pesapal.OrderResponse{TrackingID: trk, Reference: req.ID, RedirectURL: "https://pay.example/" + trk}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, trackingID string) (*pesapal.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if st, ok := g.statuses[trackingID]; ok {
		return st, nil
	}
	return &pesapal.TransactionStatus{PaymentStatus: pesapal.StatusPending}, nil
}

func (g *fakeGateway) complete(trackingID, reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[trackingID] = &pesapal.TransactionStatus{
		PaymentStatus:     pesapal.StatusCompleted,
		MerchantReference: reference,
		Raw:               []byte(`{"payment_status_description":"Completed","status_code":1}`),
	}
}

type testEnv struct {
	cfg *config.Config
	db  *gorm.DB
	gw  *fakeGateway
	app *App
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL:  "https://hire.example",
			RateLimitRPS: 1000,
			RateBurst:    1000,
		},
		JWT:     config.JWTConfig{AccessSecret: "router-secret", AccessExpiry: time.Hour, Issuer: "nguvuhire"},
		Pesapal: config.PesapalConfig{CallbackBaseURL: "https://api.hire.example", Currency: "KES"},
		Pricing: config.PricingConfig{
			VerificationAmount: 10,
			BoostAmounts:       map[string]int64{"standard": 100, "premium": 250, "ultra": 500},
		},
		Credits:   config.CreditsConfig{FreeAllotment: 1},
		Redis:     config.RedisConfig{DedupeTTL: 2 * time.Minute},
		Reconcile: config.ReconcileConfig{PendingAfter: 15 * time.Minute, AbandonAfter: 24 * time.Hour, BatchSize: 50},
	}
	db := testutil.NewDB(t)
	gw := &fakeGateway{statuses: map[string]*pesapal.TransactionStatus{}}
	return &testEnv{cfg: cfg, db: db, gw: gw, app: Setup(cfg, db, Deps{Gateway: gw})}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&e.cfg.JWT, userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) job(t *testing.T, owner string) uint {
	t.Helper()
	j := models.Job{Title: "Electrician", CreatedBy: owner}
	require.NoError(t, e.db.Create(&j).Error)
	return j.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = e.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nguvuhire_http_requests_total")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/boosts/credits", "/subscriptions/status", "/payments/orders", "/me/notifications"} {
		w := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := e.do(t, http.MethodPost, "/payments/create", "", map[string]string{"type": "verification"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerificationCheckoutEndToEnd(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "employer-1", domain.RoleEmployer)

	w := e.do(t, http.MethodPost, "/payments/create", tok, map[string]interface{}{"type": "verification"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	ref := created["reference"].(string)
	assert.Equal(t, "https://pay.example/trk-1", created["checkoutUrl"])
	assert.Equal(t, "trk-1", created["orderTrackingId"])

	e.gw.complete("trk-1", ref)
	w = e.do(t, http.MethodGet, "/payments/callback?OrderTrackingId=trk-1&OrderMerchantReference="+ref, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://hire.example/payment/success?ref="+ref, w.Header().Get("Location"))

	w = e.do(t, http.MethodGet, "/payments/orders/"+ref, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderStatusCompleted, decode(t, w)["status"])

	other := e.token(t, "employer-2", domain.RoleEmployer)
	w = e.do(t, http.MethodGet, "/payments/orders/"+ref, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/payments/orders", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)
}

func TestCreatePaymentErrors(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "employer-1", domain.RoleEmployer)
	foreign := e.job(t, "someone-else")

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing type", map[string]interface{}{}, http.StatusBadRequest},
		{"bad type", map[string]interface{}{"type": "donation"}, http.StatusBadRequest},
		{"bad boost type", map[string]interface{}{"type": "boost", "boostType": "mega"}, http.StatusBadRequest},
		{"bad post type", map[string]interface{}{"type": "boost", "postId": foreign, "postType": "gig"}, http.StatusBadRequest},
		{"other user", map[string]interface{}{"type": "verification", "userId": "employer-2"}, http.StatusForbidden},
		{"not owner", map[string]interface{}{"type": "boost", "postId": foreign, "postType": "job"}, http.StatusForbidden},
		{"missing post", map[string]interface{}{"type": "boost", "postId": 9999, "postType": "job"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/payments/create", tok, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}
	assert.Zero(t, e.gw.submits)
}

func TestCreatePaymentGatewayFailure(t *testing.T) {
	e := newEnv(t)
	e.gw.submitErr = &pesapal.GatewayError{Op: "submit_order", StatusCode: 400, Raw: `{"error":{"code":"invalid_amount"}}`}

	w := e.do(t, http.MethodPost, "/payments/create", e.token(t, "employer-1", domain.RoleEmployer), map[string]interface{}{"type": "verification"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "invalid_amount")
}

func TestCallbackMissingParams(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/payments/callback?OrderMerchantReference=verification-1", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://hire.example/payment/failed?reason=missing_params", w.Header().Get("Location"))
	assert.Zero(t, e.gw.lookups)
}

func TestIPNAlwaysAcks(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "employer-1", domain.RoleEmployer)
	w := e.do(t, http.MethodPost, "/payments/create", tok, map[string]interface{}{"type": "verification"})
	require.Equal(t, http.StatusCreated, w.Code)
	ref := decode(t, w)["reference"].(string)

	w = e.do(t, http.MethodGet, "/payments/ipn?OrderTrackingId=trk-1&OrderMerchantReference="+ref+"&OrderNotificationType=IPNCHANGE", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ack := decode(t, w)
	assert.Equal(t, "IPNCHANGE", ack["orderNotificationType"])
	assert.Equal(t, "trk-1", ack["orderTrackingId"])
	assert.Equal(t, ref, ack["orderMerchantReference"])
	assert.Equal(t, float64(200), ack["status"])

	e.gw.complete("trk-1", ref)
	req := httptest.NewRequest(http.MethodPost, "/payments/ipn", strings.NewReader(`{"OrderTrackingId":"trk-1","OrderMerchantReference":"`+ref+`","OrderNotificationType":"IPNCHANGE"}`))
	rec := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var o models.PaymentOrder
	require.NoError(t, e.db.Where("reference = ?", ref).First(&o).Error)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.NotNil(t, o.IPNReceivedAt)

	w = e.do(t, http.MethodGet, "/payments/ipn?OrderTrackingId=unknown", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/payments/ipn", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBoostPost(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "employer-1", domain.RoleEmployer)
	mine := e.job(t, "employer-1")
	second := e.job(t, "employer-1")
	foreign := e.job(t, "someone-else")

	w := e.do(t, http.MethodPost, "/boosts/boost-post", tok, map[string]interface{}{"postId": mine, "postType": "job", "boostType": "standard"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["creditsRemaining"])
	end, err := time.Parse(time.RFC3339Nano, body["boostEnd"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), end, time.Minute)

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"already boosted", map[string]interface{}{"postId": mine, "postType": "job"}, http.StatusBadRequest},
		{"no credits", map[string]interface{}{"postId": second, "postType": "job"}, http.StatusBadRequest},
		{"not owner", map[string]interface{}{"postId": foreign, "postType": "job"}, http.StatusForbidden},
		{"missing post", map[string]interface{}{"postId": 9999, "postType": "job"}, http.StatusNotFound},
		{"bad post type", map[string]interface{}{"postId": mine, "postType": "gig"}, http.StatusBadRequest},
		{"bad boost type", map[string]interface{}{"postId": mine, "postType": "job", "boostType": "mega"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/boosts/boost-post", tok, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w = e.do(t, http.MethodGet, "/boosts/credits", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	credits := decode(t, w)
	assert.Equal(t, float64(0), credits["creditsAvailable"])
	assert.Equal(t, float64(1), credits["creditsUsed"])
	assert.Len(t, credits["history"], 2)
}

func TestSubscriptionStatusRoute(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/subscriptions/status", e.token(t, "employer-1", domain.RoleEmployer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Nil(t, body["subscription"])
	assert.Equal(t, float64(1), body["credits"].(map[string]interface{})["credits_available"])
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/admin/payments/reconcile", e.token(t, "employer-1", domain.RoleEmployer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := e.token(t, "admin-1", domain.RoleAdmin)
	w = e.do(t, http.MethodPost, "/admin/payments/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["checked"])

	w = e.do(t, http.MethodPost, "/admin/payments/verification-404/reverify", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/admin/payments/ipn-events/trk-1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w), "stats")

	w = e.do(t, http.MethodGet, "/admin/payments?status=PENDING", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
}

func TestNotificationsAndFCMToken(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "employer-1", domain.RoleEmployer)

	w := e.do(t, http.MethodPost, "/me/fcm-token", tok, map[string]string{"token": "device-abc"})
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Profile
	require.NoError(t, e.db.Where("user_id = ?", "employer-1").First(&p).Error)
	assert.Equal(t, "device-abc", p.FCMToken)

	w = e.do(t, http.MethodPost, "/me/fcm-token", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, e.db.Create(&models.Notification{UserID: "employer-1", Type: "PAYMENT_CONFIRMED", Title: "Payment confirmed"}).Error)
	w = e.do(t, http.MethodGet, "/me/notifications", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["notifications"].([]interface{})
	require.Len(t, list, 1)

	w = e.do(t, http.MethodPut, "/me/notifications/abc/read", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentsWSRejectsMissingToken(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/ws/payments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
