package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-order-sync/internal/client"
	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/metrics"
	"rider-order-sync/internal/model"
	"rider-order-sync/internal/push"
	"rider-order-sync/internal/service"
	"rider-order-sync/internal/synchronizer"
)

type stubBackend struct {
	orders    []model.Order
	fetchErr  error
	updateErr error
}

func (b *stubBackend) RiderOrders(ctx context.Context) ([]model.Order, error) {
	return b.orders, b.fetchErr
}

func (b *stubBackend) UpdateOrder(ctx context.Context, id string, req dto.UpdateStatusRequest) (*model.Order, error) {
	return nil, b.updateErr
}

func (b *stubBackend) ScanOrder(ctx context.Context, trackingID string) (*model.Order, error) {
	if trackingID != "T-scan" {
		return nil, fmt.Errorf("scan order %s: %w", trackingID, client.ErrNotFound)
	}
	return &model.Order{ID: "scan", TrackingID: "T-scan", Status: model.StatusInProcess}, nil
}

func (b *stubBackend) RiderProfile(ctx context.Context, riderID string) (*model.Rider, error) {
	return &model.Rider{ID: riderID, Name: "Ali", RemainingBalance: decimal.NewFromInt(900)}, nil
}

type harness struct {
	router  *gin.Engine
	backend *stubBackend
	orders  *service.OrderService
}

func newHarness(t *testing.T, apiToken string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &stubBackend{orders: []model.Order{
		{ID: "1", TrackingID: "LHR-1", Status: model.StatusPending, AssignedDate: "01/01/2024", CustomerPhone: "03001234567"},
		{ID: "2", TrackingID: "LHR-2", Status: model.StatusPending, AssignedDate: "01/02/2024"},
		{ID: "3", TrackingID: "KHI-3", Status: model.StatusDelivered, AssignedDate: "01/01/2024"},
		{ID: "4", TrackingID: "KHI-4", Status: model.StatusHold, AssignedDate: "01/01/2024"},
	}}
	session := model.Session{RiderID: "r1", Token: "tok"}
	m := metrics.New()
	store := synchronizer.New()
	profile := service.NewProfileService(b, logger.Nop(), session)
	orders := service.NewOrderService(b, store, profile, m, logger.Nop(), session)
	scans := service.NewScanService(b, store)
	require.NoError(t, orders.Refresh(context.Background()))

	ctl := NewOrderController(orders, scans, profile)
	auth := service.NewAuthService(nil, apiToken)
	return &harness{router: NewRouter(ctl, auth, m, logger.Nop()), backend: b, orders: orders}
}

func (h *harness) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func viewIDs(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.OrderViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	ids := make([]string, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, resp.Count, len(ids))
	return ids
}

func TestListOrdersFilters(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, []string{"1", "2", "3", "4"}, viewIDs(t, h.do(http.MethodGet, "/orders", "")))
	assert.Equal(t, []string{"1"}, viewIDs(t, h.do(http.MethodGet, "/orders?status=pending&date=2024-01-01", "")))
	assert.Equal(t, []string{"3", "4"}, viewIDs(t, h.do(http.MethodGet, "/orders?q=khi", "")))
	assert.Equal(t, []string{"1"}, viewIDs(t, h.do(http.MethodGet, "/orders?q=1234", "")))
	assert.Equal(t, []string{"3", "4"}, viewIDs(t, h.do(http.MethodGet, "/orders?statuses=hold,delivered", "")))
	assert.Equal(t, []string{"3"}, viewIDs(t, h.do(http.MethodGet, "/orders?exclude=pending,hold", "")))
}

func TestPresetViews(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, []string{"1", "2", "4"}, viewIDs(t, h.do(http.MethodGet, "/orders/home", "")))
	assert.Equal(t, []string{"4"}, viewIDs(t, h.do(http.MethodGet, "/orders/home?status=hold", "")))
	assert.Equal(t, []string{"1", "2"}, viewIDs(t, h.do(http.MethodGet, "/orders/pending", "")))
	assert.Equal(t, []string{"3"}, viewIDs(t, h.do(http.MethodGet, "/orders/delivered", "")))
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(http.MethodGet, "/orders/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var o model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
	assert.Equal(t, "LHR-2", o.TrackingID)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/orders/nope", "").Code)
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(http.MethodPut, "/orders/1/status", `{"status":"delivered"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	o, _ := h.orders.Get("1")
	assert.Equal(t, model.StatusDelivered, o.Status)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPut, "/orders/2/status", `{"status":"hold"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPut, "/orders/2/status", `{}`).Code)

	h.backend.updateErr = fmt.Errorf("update order 2: %w", client.ErrStatusUpdateRejected)
	assert.Equal(t, http.StatusBadGateway, h.do(http.MethodPut, "/orders/2/status", `{"status":"delivered"}`).Code)
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, "")

	h.backend.orders = h.backend.orders[:1]
	w := h.do(http.MethodPost, "/orders/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"refreshed","count":1}`, w.Body.String())

	h.backend.fetchErr = fmt.Errorf("fetch rider orders: %w", client.ErrTransientFetch)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodPost, "/orders/refresh", "").Code)
	assert.Equal(t, []string{"1"}, viewIDs(t, h.do(http.MethodGet, "/orders", "")))
}

func TestScan(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(http.MethodPost, "/scan", `{"tracking_id":"T-scan"}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := h.orders.Get("scan")
	assert.True(t, ok)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/scan", `{"tracking_id":"T-none"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/scan", `{}`).Code)
}

func TestProfile(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	var r model.Rider
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "Ali", r.Name)
	assert.Equal(t, "900", r.RemainingBalance.String())
}

func TestAuthMiddleware(t *testing.T) {
	h := newHarness(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/orders", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/orders", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/orders", "", "Authorization", "Bearer s3cret").Code)

	// public routes stay open
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
	w := h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rider_sync_refreshes_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(http.MethodGet, "/healthz", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, h.do(http.MethodGet, "/healthz", "").Header().Get("X-Request-ID"))
}

func TestStreamSignalsChanges(t *testing.T) {
	h := newHarness(t, "")
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/orders/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	readEvent := func() string {
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "data:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		return ""
	}

	assert.JSONEq(t, `{"count":4}`, readEvent())

	o := model.Order{ID: "5", TrackingID: "ISB-5", Status: model.StatusPending}
	require.NoError(t, h.orders.HandleEvent(context.Background(), push.Event{Kind: push.KindNewOrder, NewOrder: &o}))

	assert.JSONEq(t, `{"count":5}`, readEvent())
}
