// Package httpapi exposes the attendance service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evently/internal/attendance"
	"evently/internal/httpmiddleware"
	"evently/internal/metrics"
	"evently/internal/qr"
	"evently/internal/queue"
)

// HealthChecker is a dependency reported on /healthz.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Deps are the collaborators of the HTTP layer. Metrics, Logger and Health
// entries are optional.
type Deps struct {
	Service         *attendance.Service
	Signer          *qr.Signer
	Queue           queue.Queue
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	Health          map[string]HealthChecker
	RateLimitPerMin int
	CORSOrigins     []string
	// Now is the scan clock; defaults to time.Now.
	Now func() time.Time
}

// Handler holds the route handlers.
type Handler struct {
	svc     *attendance.Service
	signer  *qr.Signer
	queue   queue.Queue
	metrics *metrics.Metrics
	logger  *zap.Logger
	health  map[string]HealthChecker
	now     func() time.Time
}

// New builds a Handler from d.
func New(d Deps) *Handler {
	h := &Handler{
		svc:     d.Service,
		signer:  d.Signer,
		queue:   d.Queue,
		metrics: d.Metrics,
		logger:  d.Logger,
		health:  d.Health,
		now:     d.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// NewRouter wires middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	h := New(d)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.Logger(h.logger, "/healthz", "/metrics"))
	if h.metrics != nil {
		r.Use(httpmiddleware.Metrics(h.metrics))
	}
	r.Use(httpmiddleware.CORS(d.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).GinMiddleware())

	r.GET("/healthz", h.Healthz)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.POST("/events", h.CreateEvent)
	v1.GET("/events", h.ListEvents)
	v1.GET("/events/:id", h.GetEvent)
	v1.DELETE("/events/:id", h.DeleteEvent)
	v1.GET("/events/:id/dashboard", h.Dashboard)

	v1.GET("/events/:id/schedules", h.Schedules)
	v1.PUT("/events/:id/schedules/:day", h.UpdateSchedule)

	v1.POST("/events/:id/participants", h.RegisterParticipants)
	v1.GET("/events/:id/participants", h.Participants)
	v1.PATCH("/participants/:pid", h.UpdateParticipant)
	v1.DELETE("/participants/:pid", h.DeleteParticipant)

	v1.POST("/scans", h.Scan)
	v1.GET("/events/:id/attendance", h.Attendance)

	v1.GET("/events/:id/reports/full", h.FullReport)
	v1.GET("/events/:id/reports/daily", h.DailyReport)
	v1.GET("/events/:id/qr-codes.pdf", h.QRCodesPDF)
	v1.POST("/events/:id/qr-codes/send", h.SendQRCodes)

	return r
}

// Healthz reports 503 when any dependency is unreachable.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}
	for name, chk := range h.health {
		up := chk.Healthy(c.Request.Context())
		deps[name] = up
		if !up {
			status = http.StatusServiceUnavailable
		}
	}
	msg := "ok"
	if status != http.StatusOK {
		msg = "degraded"
	}
	respond(c, status, msg, deps)
}
