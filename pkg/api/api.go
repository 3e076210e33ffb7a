package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/apiresponses"
	"github.com/telekom/inquiry-pipeline/pkg/config"
	"github.com/telekom/inquiry-pipeline/pkg/metrics"
	"github.com/telekom/inquiry-pipeline/pkg/system"
)

const healthCheckTimeout = 5 * time.Second

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// HealthCheck is one dependency probed by GET /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	gin    *gin.Engine
	config config.Server
	log    *zap.SugaredLogger
	checks []HealthCheck
}

type ServerConfig struct {
	Log           *zap.Logger
	Cfg           config.Server
	Debug         bool
	EnableMetrics bool
	HealthChecks  []HealthCheck
}

func NewServer(sc ServerConfig) (*Server, error) {
	if !sc.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(sc.Cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		ginzap.Ginzap(sc.Log, time.RFC3339, true),
		ginzap.RecoveryWithZap(sc.Log, true),
		system.RequestLogger(sc.Log.Sugar()),
	)

	if len(sc.Cfg.AllowedOrigins) > 0 {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: sc.Cfg.AllowedOrigins,
				AllowMethods: []string{"GET", "POST", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apiresponses.APIError{Error: "not found", Code: "NOT_FOUND"})
	})

	s := &Server{
		gin:    engine,
		config: sc.Cfg,
		log:    sc.Log.Sugar(),
		checks: sc.HealthChecks,
	}

	engine.GET("api/health", s.getHealth)
	if sc.EnableMetrics {
		engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	}

	return s, nil
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is done and then shuts down gracefully, giving
// in-flight requests up to the configured shutdown timeout.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP server listening", "address", s.config.ListenAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	for _, hc := range s.checks {
		if err := hc.Check(ctx); err != nil {
			system.GetReqLogger(c, s.log).Warnw("Health check failed", "check", hc.Name, "error", err)
			res.Status = "degraded"
			res.Checks[hc.Name] = err.Error()
			continue
		}
		res.Checks[hc.Name] = "ok"
	}

	if res.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
