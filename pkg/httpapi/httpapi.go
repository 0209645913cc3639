// Package httpapi implements the node's plain-HTTP surface: health and
// version probes, the node's wallet address, and per-key public-key lookup.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

// Server exposes the four read-only HTTP endpoints a node serves alongside
// its evaluation transport.
type Server struct {
	Store   store.SecretManager
	Version string

	ready atomic.Bool
}

// SetReady flips the node's readiness flag, consulted by /health. A node
// reports unready until SetReady(true) is called.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Routes registers the four endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/wallet", s.handleWallet)
	mux.HandleFunc("/oprf_pub/", s.handleOprfPub)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.Version})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := s.Store.LoadAddress(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (s *Server) handleOprfPub(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Path[len("/oprf_pub/"):]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid key id", http.StatusBadRequest)
		return
	}

	km, err := s.Store.GetOprfKeyMaterial(r.Context(), chain.OprfKeyID(id))
	if err != nil {
		http.Error(w, "unknown key id", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key_id":     id,
		"epoch":      km.Epoch,
		"public_key": hex.EncodeToString(km.PublicKey.Bytes()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
