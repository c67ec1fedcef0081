package common

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

func Recovered(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				slog.ErrorContext(r.Context(), "Crash", "panic", rvr, "stack", string(debug.Stack()))

				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func Traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, tid := TraceContextFunc(r.Context(), NewTraceID)
		w.Header()[HeaderTraceID] = []string{tid}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header()[HeaderContentType] = []string{ContentTypePlain}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
