package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/subsync/internal/config"
	"github.com/smallbiznis/subsync/internal/customer"
	"github.com/smallbiznis/subsync/internal/eventledger"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	obsmiddleware "github.com/smallbiznis/subsync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/subsync/internal/observability/metrics"
	obstracing "github.com/smallbiznis/subsync/internal/observability/tracing"
	"github.com/smallbiznis/subsync/internal/price"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	"github.com/smallbiznis/subsync/internal/product"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	"github.com/smallbiznis/subsync/internal/provider"
	"github.com/smallbiznis/subsync/internal/ratelimit"
	"github.com/smallbiznis/subsync/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/smallbiznis/subsync/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	provider.Module,
	customer.Module,
	price.Module,
	product.Module,
	eventledger.Module,
	subscription.Module,
	webhook.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Logger:          log,
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics"},
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

func registerGin(httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	return NewEngine(httpMetrics, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	subscriptionSvc subscriptiondomain.Service
	productSvc      productdomain.Service
	priceSvc        pricedomain.Service
	ledgerRepo      eventledgerdomain.Repository
	webhookSvc      *webhook.Service
	limiter         actionLimiter
	metrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	ProductSvc      productdomain.Service
	PriceSvc        pricedomain.Service
	LedgerRepo      eventledgerdomain.Repository
	WebhookSvc      *webhook.Service
	Limiter         *ratelimit.UserActionLimiter `optional:"true"`
	Metrics         *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http"),
		subscriptionSvc: p.SubscriptionSvc,
		productSvc:      p.ProductSvc,
		priceSvc:        p.PriceSvc,
		ledgerRepo:      p.LedgerRepo,
		webhookSvc:      p.WebhookSvc,
		metrics:         p.Metrics,
	}
	if p.Limiter != nil {
		svc.limiter = p.Limiter
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.GET("/products", s.ListProducts)

	user := api.Group("", s.UserRequired())
	user.POST("/subscriptions", s.UserRateLimit(), s.CreateSubscription)
	user.PUT("/subscriptions", s.UserRateLimit(), s.UpdateSubscription)
	user.POST("/subscriptions/cancel", s.UserRateLimit(), s.CancelSubscription)
	user.POST("/subscriptions/renew", s.UserRateLimit(), s.RenewSubscription)
	user.GET("/subscriptions/me", s.GetSubscription)
	user.GET("/subscriptions", s.ListSubscriptions)
	user.GET("/access", s.CheckAccess)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider", s.HandleProviderWebhook)
}

// registerAdminRoutes exposes catalog maintenance when an admin token is configured.
func (s *Server) registerAdminRoutes() {
	if s.cfg.AdminToken == "" {
		return
	}
	admin := s.engine.Group("/admin", s.AdminRequired())
	admin.POST("/products", s.CreateProduct)
	admin.GET("/products/:id", s.GetProduct)
	admin.POST("/prices", s.CreatePrice)
	admin.GET("/provider-subscriptions/:id/events", s.ListSubscriptionEvents)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
