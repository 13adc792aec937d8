package middleware

import (
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. When the handler had
// already started the response only the log entry is produced.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				switch {
				case rec == nil:
					return
				case rec == http.ErrAbortHandler:
					panic(rec)
				}

				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "path", r.URL.Path)
				}
				err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", rec), "panic")
				if ww.Status() == 0 {
					responses.WriteError(ctx, logg, ww, err)
					return
				}
				if logg != nil {
					logg.Error(ctx, "panic after response started", err)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
