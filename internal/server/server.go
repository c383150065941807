package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/mkhonta/esave/internal/core/handler"
	"github.com/mkhonta/esave/internal/core/logger"
	middlWre "github.com/mkhonta/esave/internal/core/middleware"
	"github.com/mkhonta/esave/internal/core/momo"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository"
	"github.com/mkhonta/esave/internal/core/repository/memory"
	"github.com/mkhonta/esave/internal/core/repository/postgres"
	"github.com/mkhonta/esave/internal/core/usecase"
	"github.com/mkhonta/esave/pkg/config"
	"github.com/mkhonta/esave/pkg/postgresdb"
)

type Server struct {
	router       *mux.Router
	log          logger.Logger
	httpServer   *http.Server
	cfg          *config.Config
	vaultHandler *handler.VaultHandler
	momoHandler  *handler.MomoHandler
	adminHandler *handler.AdminHandler
	db           *postgresdb.Database
}

func NewServer(log logger.Logger) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var vaultRepository repository.VaultRepository
	var db *postgresdb.Database
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		vaultRepository = memory.NewMemoryVaultRepo(log)
	default:
		db, err = postgresdb.NewPostgresDB(cfg.DB, log)
		if err != nil {
			return nil, err
		}
		vaultRepository = postgres.NewPostgresVaultRepo(db.DB, log)
	}

	policy := quote.Policy{WithdrawLockedEnabled: cfg.Policy.WithdrawLockedEnabled}
	vaultUsecase := usecase.NewVaultUsecase(vaultRepository, policy, log)
	gateway := momo.NewClient(momo.Config{
		BaseURL:         cfg.Momo.BaseURL,
		APIUser:         cfg.Momo.APIUser,
		APIKey:          cfg.Momo.APIKey,
		SubscriptionKey: cfg.Momo.SubscriptionKey,
		TargetEnv:       cfg.Momo.TargetEnv,
		Currency:        cfg.Momo.Currency,
	}, log)

	server := &Server{
		log:          log,
		router:       mux.NewRouter(),
		cfg:          cfg,
		vaultHandler: handler.NewVaultHandler(vaultUsecase, log),
		momoHandler:  handler.NewMomoHandler(gateway, vaultUsecase, log),
		adminHandler: handler.NewAdminHandler(vaultUsecase, log),
		db:           db,
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	secret := []byte(s.cfg.Auth.JWTSecret)

	momoRouter := s.router.PathPrefix("/momo").Subrouter()
	momoRouter.Use(middlWre.Authenticate(secret, s.log))
	momoRouter.HandleFunc("/token", s.momoHandler.Token).Methods("POST")
	momoRouter.HandleFunc("/money-collect", s.momoHandler.Collect).Methods("POST")

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middlWre.Authenticate(secret, s.log))
	apiRouter.HandleFunc("/vault-info", s.vaultHandler.GetVaultInfo).Methods("GET")
	apiRouter.HandleFunc("/withdrawable-deposits", s.vaultHandler.GetWithdrawableDeposits).Methods("GET")
	apiRouter.HandleFunc("/withdraw", s.vaultHandler.Withdraw).Methods("POST")

	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middlWre.RequireAdmin(s.log))
	adminRouter.HandleFunc("/revenue", s.adminHandler.GetRevenue).Methods("GET")
	adminRouter.HandleFunc("/revenue/export", s.adminHandler.ExportRevenue).Methods("GET")
}

// Addr is the listen address from configuration.
func (s *Server) Addr() string {
	return s.cfg.Server.Addr
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
