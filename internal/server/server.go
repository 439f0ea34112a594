package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
	auditdomain "github.com/tutorbase/tutorbase/internal/audit/domain"
	"github.com/tutorbase/tutorbase/internal/billingrun"
	"github.com/tutorbase/tutorbase/internal/cache"
	"github.com/tutorbase/tutorbase/internal/config"
	"github.com/tutorbase/tutorbase/internal/events"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	ledgerdomain "github.com/tutorbase/tutorbase/internal/ledger/domain"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	"github.com/tutorbase/tutorbase/internal/observability/logger"
	"github.com/tutorbase/tutorbase/internal/observability/metrics"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	tutordomain "github.com/tutorbase/tutorbase/internal/tutor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)

type ServerParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config

	StudentSvc studentdomain.Service
	TutorSvc   tutordomain.Service
	LessonSvc  lessondomain.Service
	InvoiceSvc invoicedomain.Service
	PayoutSvc  payoutdomain.Service
	APIKeySvc  apikeydomain.Service
	AuditSvc   auditdomain.Service
	LedgerSvc  ledgerdomain.Service
	Runner     *billingrun.Runner
	Outbox     *events.Outbox

	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// Server owns the HTTP surface. Handlers translate requests into domain
// service calls and never touch billing math themselves.
type Server struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	studentSvc studentdomain.Service
	tutorSvc   tutordomain.Service
	lessonSvc  lessondomain.Service
	invoiceSvc invoicedomain.Service
	payoutSvc  payoutdomain.Service
	apikeySvc  apikeydomain.Service
	auditSvc   auditdomain.Service
	ledgerSvc  ledgerdomain.Service
	runner     *billingrun.Runner
	outbox     *events.Outbox

	httpMetrics *metrics.HTTPMetrics
	keyCache    *cache.TTLCache[string, authorizedKey]
}

func NewServer(p ServerParam) *Server {
	return &Server{
		db:  p.DB,
		log: p.Log.Named("server"),
		cfg: p.Cfg,

		studentSvc: p.StudentSvc,
		tutorSvc:   p.TutorSvc,
		lessonSvc:  p.LessonSvc,
		invoiceSvc: p.InvoiceSvc,
		payoutSvc:  p.PayoutSvc,
		apikeySvc:  p.APIKeySvc,
		auditSvc:   p.AuditSvc,
		ledgerSvc:  p.LedgerSvc,
		runner:     p.Runner,
		outbox:     p.Outbox,

		httpMetrics: p.HTTPMetrics,
		keyCache:    cache.NewTTLCache[string, authorizedKey](),
	}
}

// NewEngine builds the gin engine with logging and metrics middleware.
func (s *Server) NewEngine() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if s.httpMetrics != nil {
		engine.Use(metrics.GinMiddleware(s.httpMetrics))
	}

	s.RegisterRoutes(engine)
	return engine
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.Use(s.APIKeyRequired())
	{
		v1.POST("/parents", s.CreateParent)
		v1.POST("/students", s.CreateStudent)
		v1.GET("/students", s.ListStudents)
		v1.GET("/students/:id", s.GetStudent)

		v1.POST("/tutors", s.CreateTutor)
		v1.GET("/tutors", s.ListTutors)
		v1.GET("/tutors/:id", s.GetTutor)
		v1.PATCH("/tutors/:id/rate", s.UpdateTutorRate)

		v1.POST("/lessons", s.CreateLesson)
		v1.GET("/lessons", s.ListLessons)
		v1.GET("/lessons/:id", s.GetLesson)
		v1.POST("/lessons/:id/complete", s.CompleteLesson)
		v1.POST("/lessons/:id/cancel", s.CancelLesson)

		v1.POST("/billing/run", s.RunBilling)

		v1.GET("/invoices", s.ListInvoices)
		v1.GET("/invoices/:id", s.GetInvoice)
		v1.GET("/invoices/:id/line-items", s.ListInvoiceLineItems)
		v1.POST("/invoices/:id/pay", s.MarkInvoicePaid)

		v1.GET("/payouts/current", s.ListCurrentPayouts)
		v1.GET("/payouts/:id", s.GetPayout)
		v1.POST("/payouts/:id/pay", s.MarkPayoutPaid)

		v1.POST("/api-keys", s.CreateAPIKey)
		v1.GET("/api-keys", s.ListAPIKeys)
		v1.DELETE("/api-keys/:id", s.RevokeAPIKey)
	}
}

// @Summary      Health
// @Description  Liveness probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run binds the engine to the configured address under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	engine := s.NewEngine()
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}
