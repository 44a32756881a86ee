package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/observability"
	obsmiddleware "github.com/smallbiznis/tirta/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tirta/internal/observability/tracing"
	"github.com/smallbiznis/tirta/internal/payment"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"github.com/smallbiznis/tirta/internal/reading"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/smallbiznis/tirta/internal/statistics"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
	"github.com/smallbiznis/tirta/internal/tariff"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	authorization.Module,
	tariff.Module,
	reading.Module,
	payment.Module,
	statistics.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	clock          clock.Clock
	authzSvc       authorization.Service
	paymentSvc     paymentdomain.Service
	readingSvc     readingdomain.Service
	tariffSvc      tariffdomain.Service
	statisticsSvc  statisticsdomain.Service
	readingLimiter *ratelimit.ReadingIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Clock          clock.Clock
	AuthzSvc       authorization.Service
	PaymentSvc     paymentdomain.Service
	ReadingSvc     readingdomain.Service
	TariffSvc      tariffdomain.Service
	StatisticsSvc  statisticsdomain.Service
	ReadingLimiter *ratelimit.ReadingIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		clock:          p.Clock,
		authzSvc:       p.AuthzSvc,
		paymentSvc:     p.PaymentSvc,
		readingSvc:     p.ReadingSvc,
		tariffSvc:      p.TariffSvc,
		statisticsSvc:  p.StatisticsSvc,
		readingLimiter: p.ReadingLimiter,
	}
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	api.POST("/payments/generate", s.GeneratePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.GET("/payments/:id/transitions", s.ListPaymentTransitions)
	api.POST("/payments/:id/actions", s.ApplyPaymentAction)

	api.POST("/readings", s.ReadingIngestRateLimit(), s.RecordReading)
	api.GET("/readings", s.ListReadings)

	api.GET("/tariffs", s.authorizeAction(authorization.ObjectTariff, authorization.ActionTariffView), s.ListTariffs)
	api.GET("/tariffs/resolve", s.authorizeAction(authorization.ObjectTariff, authorization.ActionTariffView), s.ResolveTariff)

	api.GET("/statistics/payments", s.GetPaymentStatistics)
	api.GET("/statistics/service-requests", s.GetServiceRequestStatistics)

	if !s.cfg.IsProduction() {
		// Non-production fixture reset; deletes payments outright.
		api.POST("/test/cleanup", s.authorizeAction(authorization.ObjectScheduler, authorization.ActionSchedulerRun), s.TestCleanup)
	}
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.ActorRequired())

	admin.POST("/tariffs", s.authorizeAction(authorization.ObjectTariff, authorization.ActionTariffManage), s.CreateTariff)
	admin.POST("/overdue-sweep", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentMarkOverdue), s.RunOverdueSweep)
}
