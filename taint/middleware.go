package taint

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
)

// DefaultMarkerHeader is the request header the middleware reads the marker
// from.
const DefaultMarkerHeader = "X-Introspector-Taint"

// A SinkHandler receives the data flow of a request once the response has
// been written.
type SinkHandler func(r *http.Request, flow *DataFlow)

// Middleware treats each request as a unit of work. It gives the request a
// fresh correlation key, activates the marker found in header and, once the
// handler returns, passes the sinks of the request to handle. Requests
// without the header are served without checks.
func Middleware(t *Tracker, header string, handle SinkHandler) mux.MiddlewareFunc {
	if header == "" {
		header = DefaultMarkerHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			marker := r.Header.Get(header)
			if marker == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := xid.New().String()

			t.SetActiveMarker(key, marker)
			defer t.Forget(key)

			r = r.WithContext(WithCorrelationKey(r.Context(), key))
			next.ServeHTTP(w, r)

			flow := t.FlushSinks(key)
			if handle != nil {
				handle(r, flow)
			}
		})
	}
}
