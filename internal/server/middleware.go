package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/go-chi/cors"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	requestIDKey contextKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity attached by [Guard]. The zero identity is returned when
// the request did not pass through the guard.
func IdentityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(identityKey).(models.Identity)
	return id
}

// RequestID returns the id assigned by [RequestLogger].
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Guard rejects requests without a valid bearer token and attaches the caller's identity.
//
// Missing header, wrong scheme, bad or expired token and unknown user all produce the
// same 401 response.
func Guard(resolver IdentityResolver, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logger.Debug("rejected request without bearer token", "request_id", RequestID(r.Context()), "path", r.URL.Path)
				notAuthorized(w)
				return
			}

			id, err := resolver.Resolve(r.Context(), token)
			if err != nil || id.Empty() {
				logger.Debug("rejected bearer token", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
				notAuthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func notAuthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Success: false, Message: "Not authorized"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger assigns a request id, echoes it in [RequestIDHeader] and logs each request
// with its status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = shared.GenerateID()
			}
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

			logger.Info("request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// CORS applies one cross-origin policy for all routes.
func CORS(origins []string) Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Recoverer turns a panicking handler into a 500 response.
func Recoverer(errs *responder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					errs.logger.Error("handler panicked", "path", r.URL.Path, "panic", rec)
					errs.message(w, r, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
