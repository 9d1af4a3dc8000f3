package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/model"
)

var testPaths = Paths{
	RiderOrders: "/order/rider-specific",
	UpdateOrder: "/order/",
	Profile:     "/rider/",
	OrderScan:   "/order/scan",
	Login:       "/rider/login",
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, testPaths, 2*time.Second).WithToken("tok-1")
}

func TestRiderOrdersSendsBearerAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/order/rider-specific", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"_id":"o1","tracking_id":"TRK1","status":"pending","amount":1500,"delivery_charges":"150.50","cutsomDate":"15/01/2024"},
			{"_id":"o2","tracking_id":"TRK2","status":"out_for_delivery"}
		]}`))
	})

	orders, err := c.RiderOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "1500", orders[0].Amount.String())
	assert.Equal(t, "150.5", orders[0].DeliveryCharges.String())
	assert.Equal(t, model.Status("out_for_delivery"), orders[1].Status)
}

func TestRiderOrdersEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	})

	orders, err := c.RiderOrders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestRiderOrdersUnsuccessfulReplyIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"db timeout","data":null}`))
	})

	orders, err := c.RiderOrders(context.Background())
	assert.ErrorIs(t, err, ErrTransientFetch)
	assert.Contains(t, err.Error(), "db timeout")
	assert.Nil(t, orders)
}

func TestStatusErrorFallsBackToBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("<html><body>Bad Request" + strings.Repeat(".", 300) + "</body></html>"))
	})

	_, err := c.RiderOrders(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.True(t, strings.HasPrefix(se.Message, "<html><body>Bad Request"))
	assert.LessOrEqual(t, len(se.Message), maxErrorBody+3)

	assert.Equal(t, "Bad thing", statusError(http.StatusConflict, []byte(`{"success":false,"message":"Bad thing"}`)).Message)
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.RiderOrders(context.Background())
	assert.ErrorIs(t, err, ErrTransientFetch)
}

func TestUnreachableBackendIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, testPaths, time.Second)
	_, err := c.RiderOrders(context.Background())
	assert.ErrorIs(t, err, ErrTransientFetch)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 8; i++ {
		_, err := c.RiderOrders(context.Background())
		assert.ErrorIs(t, err, ErrTransientFetch)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestUpdateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/order/o1", r.URL.Path)

		var req dto.UpdateStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.StatusHold, req.Status)
		assert.Equal(t, "gate closed", req.Feedback)

		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"o1","status":"hold","feedback":"gate closed"}}`))
	})

	o, err := c.UpdateOrder(context.Background(), "o1", dto.UpdateStatusRequest{Status: model.StatusHold, Feedback: "gate closed"})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, model.StatusHold, o.Status)
}

func TestUpdateOrderRejected(t *testing.T) {
	t.Run("success false", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"order locked"}`))
		})
		_, err := c.UpdateOrder(context.Background(), "o1", dto.UpdateStatusRequest{Status: model.StatusDelivered})
		assert.ErrorIs(t, err, ErrStatusUpdateRejected)
		assert.Contains(t, err.Error(), "order locked")
	})

	t.Run("bad request", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"invalid status"}`))
		})
		_, err := c.UpdateOrder(context.Background(), "o1", dto.UpdateStatusRequest{Status: "bogus"})
		assert.ErrorIs(t, err, ErrStatusUpdateRejected)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.Code)
		assert.Equal(t, "invalid status", se.Message)
	})
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.RiderProfile(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRiderProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rider/r1", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"r1","name":"Ali","remaining_balance":2500}}`))
	})

	rider, err := c.RiderProfile(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Ali", rider.Name)
	assert.Equal(t, "2500", rider.RemainingBalance.String())
}

func TestScanOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req dto.ScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.TrackingID != "TRK9" {
			_, _ = w.Write([]byte(`{"success":false,"data":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"o9","tracking_id":"TRK9","cust_name":"Sana"}}`))
	})

	o, err := c.ScanOrder(context.Background(), "TRK9")
	require.NoError(t, err)
	assert.Equal(t, "Sana", o.CustomerName)

	_, err = c.ScanOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			_, _ = w.Write([]byte(`{"success":false,"message":"wrong password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"token":"jwt-abc","data":{"_id":"r1"}}`))
	})

	s, err := c.Login(context.Background(), "rider@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.Session{RiderID: "r1", Token: "jwt-abc"}, *s)

	_, err = c.Login(context.Background(), "rider@example.com", "guess")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "wrong password")
}
