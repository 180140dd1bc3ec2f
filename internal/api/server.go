// Package api exposes the review workflow over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/notify"
	"github.com/t77yq/comment-evaluator/internal/storage"
)

const requestIDHeader = "X-Request-ID"

// Fetcher refreshes the local dataset files before a reload
type Fetcher interface {
	FetchDatasets(ctx context.Context) error
	FetchDataset(ctx context.Context, name string) error
}

// Server holds the dependencies of the HTTP handlers
type Server struct {
	logger    *zap.Logger
	cache     *dataset.Cache
	store     storage.Store
	publisher notify.Publisher
	fetcher   Fetcher
}

// Option customizes a Server
type Option func(*Server)

// WithPublisher announces created evaluations through p
func WithPublisher(p notify.Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithFetcher downloads fresh datasets on POST /admin/reload
func WithFetcher(f Fetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// NewServer wires the handlers. Events are dropped unless WithPublisher is given.
func NewServer(logger *zap.Logger, cache *dataset.Cache, store storage.Store, opts ...Option) *Server {
	s := &Server{
		logger:    logger.Named("api"),
		cache:     cache,
		store:     store,
		publisher: notify.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/files", s.files)

	data := r.Group("/data")
	data.GET("/stats", s.dataStats)

	alerts := r.Group("/alerts")
	alerts.GET("", s.listAlerts)
	alerts.GET("/filters", s.alertFilters)
	alerts.GET("/summary", s.alertsSummary)
	alerts.GET("/:id", s.getAlert)
	alerts.GET("/:id/next", s.nextAlert)
	alerts.GET("/:id/oil", s.oilData)
	alerts.GET("/:id/oil/snapshot", s.oilSnapshot)
	alerts.GET("/:id/telemetry", s.telemetryWindow)
	alerts.GET("/:id/telemetry/breaches", s.telemetryBreaches)
	alerts.GET("/:id/telemetry/trend/:variable", s.telemetryTrend)
	alerts.GET("/:id/comments", s.alertComments)
	alerts.GET("/:id/evaluations", s.alertEvaluations)

	evaluations := r.Group("/evaluations")
	evaluations.POST("", s.createEvaluation)
	evaluations.GET("/stats", s.evaluationStats)

	comments := r.Group("/comments")
	comments.GET("/:id/evaluations", s.commentEvaluations)
	comments.GET("/:id/evaluated", s.commentEvaluated)

	analytics := r.Group("/analytics")
	analytics.GET("/summary", s.analyticsSummary)
	analytics.GET("/grades", s.analyticsGrades)
	analytics.GET("/distribution", s.analyticsDistribution)
	analytics.GET("/notes", s.analyticsNotes)
	analytics.GET("/evaluations", s.analyticsEvaluations)

	r.POST("/admin/reload", s.reload)
	return r
}

// requestLogger tags each request with an id and logs it once served
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		s.logger.Info("Request served",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}
