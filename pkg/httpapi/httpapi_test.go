package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/httpapi"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

func newTestServer(t *testing.T) (*httpapi.Server, *http.ServeMux) {
	t.Helper()
	s := store.New("0xabc")
	share, err := curve.RandomFr()
	require.NoError(t, err)
	require.NoError(t, s.StoreDlogShare(context.Background(), chain.OprfKeyID(1), store.KeyMaterial{
		Share:     share,
		PublicKey: curve.Base().ScalarMul(share),
		Epoch:     0,
	}))

	srv := &httpapi.Server{Store: s, Version: "test-version"}
	mux := http.NewServeMux()
	srv.Routes(mux)
	return srv, mux
}

func TestHealthReflectsReadiness(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOprfPubReturnsKnownKey(t *testing.T) {
	_, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oprf_pub/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oprf_pub/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletReturnsAddress(t *testing.T) {
	_, mux := newTestServer(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xabc")
}
