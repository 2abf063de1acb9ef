package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cuotas/internal/core"
)

func TestRefreshStoresRate(t *testing.T) {
	repo := newTestStorage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"date":"2025-08-29","base":"USD","quote":"MXN","rate":"18.7345"}`))
	}))
	defer srv.Close()

	svc := NewRatesService(repo, srv.URL)
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	mxn, rate, err := svc.ConvertToMXN(ctx, core.Money{Centavos: 10000}, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "18.7345", rate.Rate.String())
	// $100.00 USD at 18.7345 = $1,873.45 MXN.
	require.Equal(t, int64(187345), mxn.Centavos)
}

func TestRefreshAcceptsNumericRate(t *testing.T) {
	repo := newTestStorage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"date":"2025-08-29","rate":18.5}`))
	}))
	defer srv.Close()

	svc := NewRatesService(repo, srv.URL)
	require.NoError(t, svc.Refresh(context.Background()))
}

func TestRefreshRejectsBadFeed(t *testing.T) {
	repo := newTestStorage(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"server error", `{}`, http.StatusInternalServerError},
		{"bad rate", `{"date":"2025-08-29","rate":"abc"}`, http.StatusOK},
		{"zero rate", `{"date":"2025-08-29","rate":"0"}`, http.StatusOK},
		{"bad date", `{"date":"29/08/2025","rate":"18.5"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc := NewRatesService(repo, srv.URL)
			require.Error(t, svc.Refresh(context.Background()))
		})
	}
}

func TestConvertWithoutRate(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewRatesService(repo, "http://unused.invalid")

	_, _, err := svc.ConvertToMXN(context.Background(), core.Money{Centavos: 100}, time.Now())
	require.ErrorIs(t, err, ErrNoRate)
}
