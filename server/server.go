package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/coalmind/handlers"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	HTTPSPort    string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig leaves room in WriteTimeout for a corrected generation,
// which makes two model calls.
func DefaultConfig() Config {
	return Config{
		CertCacheDir: "certs",
		HTTPPort:     "8080",
		HTTPSPort:    "443",
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}
}

// Handlers groups the route handlers. Nil members leave their routes out.
type Handlers struct {
	Forms     *handlers.FormHandler
	Hazards   *handlers.HazardHandler
	Chat      *handlers.ChatHandler
	Documents *handlers.DocumentHandler
	Health    *handlers.HealthHandler
}

func SetupRoutes(h Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", handlers.Welcome).Methods("GET")
	if h.Health != nil {
		r.Handle("/health", h.Health).Methods("GET")
	}

	if h.Forms != nil {
		r.HandleFunc("/generate-form/", h.Forms.GenerateForm).Methods("POST")
		r.HandleFunc("/forms/from-document", h.Forms.FromDocument).Methods("POST")
		r.HandleFunc("/forms", h.Forms.ListForms).Methods("GET")
		r.HandleFunc("/forms/{id}", h.Forms.GetForm).Methods("GET")
	}

	if h.Hazards != nil {
		r.HandleFunc("/hazard-analysis/", h.Hazards.Analyze).Methods("POST")
		r.HandleFunc("/executions/{id}", h.Hazards.GetExecution).Methods("GET")
	}

	if h.Chat != nil {
		r.HandleFunc("/chat", h.Chat.Chat).Methods("POST")
		r.HandleFunc("/chart", h.Chat.Chart).Methods("POST")
	}

	if h.Documents != nil {
		r.HandleFunc("/documents/upload", h.Documents.Upload).Methods("POST")
		r.HandleFunc("/documents/search", h.Documents.Search).Methods("POST")
	}

	return r
}

func SetupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// ServeProduction serves HTTPS with certificates from Let's Encrypt. Port
// HTTPPort answers ACME challenges and redirects everything else.
func ServeProduction(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	if len(cfg.Domains) == 0 {
		return errors.New("production serving needs at least one domain")
	}

	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	challenge := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      autocertManager.HTTPHandler(nil),
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		errc <- challenge.ListenAndServe()
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPSPort,
		Handler: handler,
		TLSConfig: &tls.Config{
			GetCertificate:   autocertManager.GetCertificate,
			CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
			MinVersion:       tls.VersionTLS12,
		},
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		// Key and cert provided automatically by autocert.
		errc <- srv.ListenAndServeTLS("", "")
	}()

	logger.Info("Serving production", slog.Any("domains", cfg.Domains), slog.String("https_port", cfg.HTTPSPort))
	return wait(ctx, errc, logger, challenge, srv)
}

// ServeDevelopment serves plain HTTP on HTTPPort.
func ServeDevelopment(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	logger.Info("Serving development", slog.String("addr", srv.Addr))
	return wait(ctx, errc, logger, srv)
}

func wait(ctx context.Context, errc <-chan error, logger *slog.Logger, servers ...*http.Server) error {
	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown failed", slog.String("addr", srv.Addr), slog.String("error", err.Error()))
		}
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", serveErr)
	}
	return nil
}
