package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/logging"
)

const traceIDHeader = "X-Request-ID"

// Tracing assigns every request an id, honoring one supplied by the caller.
// The webhook acknowledgement contract echoes this id back to the aggregator.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		w.Header().Set(traceIDHeader, traceID)
		ctx := logging.WithTraceID(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
