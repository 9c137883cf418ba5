package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/crypto/shamir"
	"github.com/Davincible/shardwallet/pkg/sharestore"
)

// StoreRequest is the body of POST /keyshare. Pubkey may be omitted only when
// the server runs in single-tenant mode.
type StoreRequest struct {
	ServerActiveKeyshare string `json:"serverActiveKeyshare"`
	Pubkey               string `json:"pubkey,omitempty"`
}

type StoreResponse struct {
	IsSuccess bool `json:"isSuccess"`
}

type FetchResponse struct {
	ServerActiveKeyshare string `json:"serverActiveKeyshare"`
}

// Handler serves the keyshare endpoints on top of a sharestore.Store.
type Handler struct {
	store       *sharestore.Store
	maxBodySize int64
	log         *slog.Logger
}

func NewHandler(store *sharestore.Store, maxBodySize int64, log *slog.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &Handler{
		store:       store,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("malformed keyshare body", "err", err)
		writeJSON(w, http.StatusBadRequest, StoreResponse{IsSuccess: false})
		return
	}

	if err := validation.ValidateShare(req.ServerActiveKeyshare); err != nil {
		h.log.Debug("invalid keyshare", "err", err)
		writeJSON(w, http.StatusBadRequest, StoreResponse{IsSuccess: false})
		return
	}
	share, err := shamir.DecodeHex(req.ServerActiveKeyshare)
	if err != nil {
		h.log.Debug("invalid keyshare", "err", err)
		writeJSON(w, http.StatusBadRequest, StoreResponse{IsSuccess: false})
		return
	}
	defer share.Wipe()

	if err := h.store.Put(r.Context(), req.Pubkey, share.Data); err != nil {
		if errors.Is(err, sharestore.ErrKeyRequired) || errors.Is(err, sharestore.ErrInvalidKey) {
			writeJSON(w, http.StatusBadRequest, StoreResponse{IsSuccess: false})
			return
		}
		writeJSON(w, http.StatusInternalServerError, StoreResponse{IsSuccess: false})
		return
	}

	h.log.Info("keyshare stored", "pubkey", req.Pubkey)
	writeJSON(w, http.StatusOK, StoreResponse{IsSuccess: true})
}

func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	pubkey := r.URL.Query().Get("pubkey")

	share, err := h.store.Get(r.Context(), pubkey)
	switch {
	case err == nil:
	case errors.Is(err, sharestore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, FetchResponse{})
		return
	case errors.Is(err, sharestore.ErrKeyRequired), errors.Is(err, sharestore.ErrInvalidKey):
		writeJSON(w, http.StatusBadRequest, FetchResponse{})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, FetchResponse{})
		return
	}

	s, err := shamir.FromBytes(share)
	if err != nil {
		h.log.Error("stored keyshare is malformed", "pubkey", pubkey, "err", err)
		writeJSON(w, http.StatusInternalServerError, FetchResponse{})
		return
	}
	writeJSON(w, http.StatusOK, FetchResponse{ServerActiveKeyshare: s.Hex()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
