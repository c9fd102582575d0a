package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wallet/internal/cache"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"
	maxIdempotencyKey    = 128
	maxFingerprintBody   = 64 << 10
)

type IdempotencyCache interface {
	Begin(ctx context.Context, owner, key, fingerprint string, ttl time.Duration) (*cache.Response, error)
	Complete(ctx context.Context, owner, key, fingerprint string, resp cache.Response, ttl time.Duration) error
	Release(ctx context.Context, owner, key string) error
}

// Idempotency replays the stored response when an authenticated client
// repeats a request with the same Idempotency-Key. A key is bound to the
// method, path and body of the request that first used it; reusing it for
// anything else is rejected. Server errors and panics are not stored, so the
// client can retry them. If the cache itself fails the request runs without
// the guarantee.
func Idempotency(store IdempotencyCache, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			owner, ok := UserIDFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeMessage(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			ctx := r.Context()
			fingerprint, err := requestFingerprint(r)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid request payload")
				return
			}
			cached, err := store.Begin(ctx, owner, key, fingerprint, ttl)
			switch {
			case errors.Is(err, cache.ErrKeyReused):
				writeMessage(w, http.StatusBadRequest, "Idempotency-Key was already used for a different request")
				return
			case errors.Is(err, cache.ErrInFlight):
				writeMessage(w, http.StatusBadRequest, "A request with this Idempotency-Key is already in progress")
				return
			case err != nil:
				logger.ErrorContext(ctx, "idempotency lookup failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				logger.InfoContext(ctx, "idempotency hit", "key", key, "user_id", owner)
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set(IdempotencyHitHeader, "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			// The reservation must be resolved even if the caller has gone or
			// the handler panics. A handled request keeps its reservation
			// even when storing the reply fails.
			saveCtx := context.WithoutCancel(ctx)
			handled := false
			defer func() {
				if handled {
					return
				}
				if err := store.Release(saveCtx, owner, key); err != nil {
					logger.ErrorContext(ctx, "idempotency release failed", "key", key, "error", err)
				}
			}()

			var body bytes.Buffer
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			handled = true
			resp := cache.Response{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			}
			if err := store.Complete(saveCtx, owner, key, fingerprint, resp, ttl); err != nil {
				logger.ErrorContext(ctx, "idempotency save failed", "key", key, "error", err)
			}
		})
	}
}

// requestFingerprint hashes the method, path and body, and leaves the body
// readable for the next handler.
func requestFingerprint(r *http.Request) (string, error) {
	var payload []byte
	if r.Body != nil {
		var err error
		payload, err = io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody))
		if err != nil {
			return "", err
		}
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(payload), r.Body), r.Body}
	}
	sum := sha256.New()
	_, _ = io.WriteString(sum, r.Method+"\n"+r.URL.Path+"\n")
	_, _ = sum.Write(payload)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
