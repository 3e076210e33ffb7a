// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package inquiry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/system"
)

const adminToken = "s3cret"

type listResponse struct {
	Deliveries []delivery.Record `json:"deliveries"`
	Count      int               `json:"count"`
}

type failingLister struct{}

func (failingLister) List(context.Context, delivery.Status, int) ([]delivery.Record, error) {
	return nil, errors.New("database is locked")
}

func adminRequest(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{name: "valid token", configured: adminToken, sent: adminToken, wantStatus: http.StatusOK},
		{name: "wrong token", configured: adminToken, sent: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing token", configured: adminToken, wantStatus: http.StatusUnauthorized},
		{name: "admin api disabled", configured: "", sent: "anything", wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			engine := setupRouter(t, NewAdminController(system.NewTestLogger(), f.service, f.deliveries, tt.configured))

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/deliveries", tt.sent))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAdminListDeliveries(t *testing.T) {
	f := newFixture(t, 100)
	f.sender.failConfirm = true
	f.sender.failNotify = true
	_, err := f.service.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)
	engine := setupRouter(t, NewAdminController(system.NewTestLogger(), f.service, f.deliveries, adminToken))

	t.Run("pending records are masked", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/deliveries?status=pending", adminToken))

		require.Equal(t, http.StatusOK, w.Code)
		var body listResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Count)
		for _, rec := range body.Deliveries {
			assert.Equal(t, delivery.StatusPending, rec.Status)
			assert.Equal(t, delivery.Redacted, rec.Payload.Value("email"))
		}
		assert.NotContains(t, w.Body.String(), "max@example.com")
	})

	t.Run("limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/deliveries?limit=1", adminToken))

		require.Equal(t, http.StatusOK, w.Code)
		var body listResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
	})

	t.Run("no sent records yet", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/deliveries?status=sent", adminToken))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deliveries":[],"count":0}`, w.Body.String())
	})

	for _, target := range []string{"/api/admin/deliveries?status=archived", "/api/admin/deliveries?limit=-1", "/api/admin/deliveries?limit=ten"} {
		t.Run("bad query "+target, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, adminRequest(http.MethodGet, target, adminToken))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAdminListDeliveriesStoreError(t *testing.T) {
	f := newFixture(t, 100)
	engine := setupRouter(t, NewAdminController(system.NewTestLogger(), f.service, failingLister{}, adminToken))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, adminRequest(http.MethodGet, "/api/admin/deliveries", adminToken))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "locked")
}

func TestAdminRetryDeliveries(t *testing.T) {
	f := newFixture(t, 100)
	f.sender.failNotify = true
	_, err := f.service.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)
	f.sender.failNotify = false
	engine := setupRouter(t, NewAdminController(system.NewTestLogger(), f.service, f.deliveries, adminToken))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/deliveries/retry", adminToken))

	require.Equal(t, http.StatusOK, w.Code)
	var res delivery.SweepResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, delivery.SweepResult{Processed: 1, Sent: 1}, res)
}

type busySweeper struct{}

func (busySweeper) Sweep(context.Context) (delivery.SweepResult, error) {
	return delivery.SweepResult{}, delivery.ErrSweepInProgress
}

func TestAdminRetryDeliveriesWhileSweepRunning(t *testing.T) {
	log := system.NewTestLogger()
	svc := NewService(nil, nil, nil, busySweeper{}, log)
	engine := setupRouter(t, NewAdminController(log, svc, delivery.NewMemoryStore(), adminToken))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/deliveries/retry", adminToken))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}
