// Package api serves a small read-only HTTP API over the ledger
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/simpleiot/budgetbot/store"
)

// ShiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
func ShiftPath(p string) (head, tail string) {
	p = path.Clean("/" + p)
	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}

// App is the root http handler
type App struct {
	V1ApiHandler http.Handler
}

// Top level handler for http requests
func (h *App) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	var head string
	head, req.URL.Path = ShiftPath(req.URL.Path)

	switch head {
	case "health":
		writeJSON(res, map[string]string{"status": "ok"})
	case "v1":
		if h.V1ApiHandler == nil {
			http.Error(res, "Not Found", http.StatusNotFound)
			return
		}
		h.V1ApiHandler.ServeHTTP(res, req)
	default:
		http.Error(res, "Not Found", http.StatusNotFound)
	}
}

// ServerArgs can be passed to the Server
type ServerArgs struct {
	Port   string
	Ledger store.Ledger
	// HS256 signing secret, the v1 API is disabled when empty
	Secret string
	Debug  bool
	// defaults to time.Now
	Now func() time.Time
}

// Server is the HTTP API server
type Server struct {
	args   ServerArgs
	server *http.Server
}

// NewServer creates a new server
func NewServer(args ServerArgs) (*Server, error) {
	if args.Now == nil {
		args.Now = time.Now
	}

	app := &App{}

	if args.Secret != "" {
		key, err := NewKey(args.Secret)
		if err != nil {
			return nil, err
		}
		app.V1ApiHandler = NewV1Handler(args.Ledger, key, args.Now)
	} else {
		log.Println("API secret not set, v1 API disabled")
	}

	var handler http.Handler = app
	if args.Debug {
		logger := NewHTTPLogger("budgetbot http: ")
		handler = logger.Handler(app)
	}

	return &Server{
		args: args,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", args.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root handler of the server
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run the server until stopped
func (s *Server) Run() error {
	log.Println("Starting http server, debug: ", s.args.Debug)
	log.Println("Starting API on port: ", s.args.Port)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop the server
func (s *Server) Stop(_ error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Println("Error shutting down http server: ", err)
	}
}
