package kvstore

import (
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves the /v1/metadata API over any Store. It is the server
// half of HTTPStore, used by tests and the demo CLI.
func Handler(store Store, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	keyFrom := func(req *http.Request) ([]byte, bool) {
		key, err := hex.DecodeString(chi.URLParam(req, "key"))
		if err != nil || len(key) == 0 {
			return nil, false
		}
		return key, true
	}

	r.Get("/v1/metadata/{key}", func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyFrom(req)
		if !ok {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		value, err := store.Get(req.Context(), key)
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, ErrDeleted):
			http.Error(w, "deleted", http.StatusGone)
		case err != nil:
			log.Error().Err(err).Msg("metadata get failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(value)
		}
	})

	r.Put("/v1/metadata/{key}", func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyFrom(req)
		if !ok {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		value, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if err := store.Set(req.Context(), key, value); err != nil {
			log.Error().Err(err).Msg("metadata set failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/v1/metadata/{key}", func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyFrom(req)
		if !ok {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		if err := store.Delete(req.Context(), key); err != nil {
			log.Error().Err(err).Msg("metadata delete failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
