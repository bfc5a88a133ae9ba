package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/idempotency"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	maxReplayBody         = 1 << 20
	defaultIdempotencyTTL = 24 * time.Hour
)

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the authenticated user so one user cannot read another's
// replay. Server errors are not stored, so the client can retry them.
func Idempotency(repo idempotency.Repository, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scopedKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			stored, err := repo.Get(r.Context(), key)
			switch {
			case err != nil:
				logger.Warn().Err(err).Msg("idempotency lookup failed, running handler")
			case stored != nil:
				replay(w, stored)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			body := &cappedBuffer{limit: maxReplayBody}
			ww.Tee(body)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError || body.overflow {
				return
			}
			now := time.Now()
			if err := repo.Set(r.Context(), &idempotency.Record{
				Key:            key,
				ResponseBody:   body.String(),
				ResponseStatus: status,
				CreatedAt:      now,
				ExpiresAt:      now.Add(ttl),
			}); err != nil {
				logger.Warn().Err(err).Str("status", http.StatusText(status)).Msg("failed to store idempotent response")
			}
		})
	}
}

func scopedKey(r *http.Request) string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return ""
	}
	if userID, ok := GetUserID(r.Context()); ok {
		return userID + ":" + key
	}
	return key
}

func replay(w http.ResponseWriter, rec *idempotency.Record) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(rec.ResponseStatus)
	_, _ = w.Write([]byte(rec.ResponseBody))
}

// cappedBuffer stops recording once limit is passed.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.overflow {
		return len(p), nil
	}
	if b.Len()+len(p) > b.limit {
		b.overflow = true
		b.Reset()
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
