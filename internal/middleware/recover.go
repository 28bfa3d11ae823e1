package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mmynk/guestpass/pkg/logging"
)

// Recover turns a panic in next into a call to onPanic, so one bad request
// renders an error page instead of dropping the connection.
func Recover(logger *slog.Logger, onPanic func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				logging.FromContext(r.Context(), logger).Error("Global Error",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				onPanic(w, r, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
