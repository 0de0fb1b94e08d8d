package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// MuxRouter implements the [Router] interface with [mux.Router].
//
// Middleware wraps the whole router rather than matched routes, so CORS preflights and
// unmatched paths pass through it too.
type MuxRouter struct {
	mux         *mux.Router
	middlewares []Middleware
	chain       http.Handler
}

// NewMuxRouter creates a new [MuxRouter] whose 404 and 405 responses are JSON errors.
func NewMuxRouter(errs *responder) *MuxRouter {
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.message(w, r, http.StatusNotFound, "Route not found")
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.message(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r := &MuxRouter{mux: m}
	r.chain = m
	return r
}

// Use adds [Middleware] to the router's middleware stack, applied in the order it's added.
func (r *MuxRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
	r.chain = r.Apply(r.mux)
}

// Handle registers a handler for the specified HTTP method and path.
//
// Path variables use mux syntax, e.g. /api/playlists/{playlistId}.
func (r *MuxRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(path, handler).Methods(method)
}

// Handler registers every route returned by [Handler.Routes].
func (r *MuxRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(route.Method, route.Path, route.Handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *MuxRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.chain.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// The first middleware added is the outermost.
func (r *MuxRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

// pathVar returns a path variable captured by the matched route.
func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
