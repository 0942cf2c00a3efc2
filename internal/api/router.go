// Package api exposes the aggregator over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/newsdesk/internal/aggregator"
	"github.com/Adda-Baaj/newsdesk/internal/domain"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/metrics"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Aggregator answers news queries. *aggregator.Aggregator satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregator.Request) (aggregator.Result, error)
}

type Server struct {
	agg     Aggregator
	metrics *metrics.Metrics
	log     logger.Logger
}

func NewServer(agg Aggregator, m *metrics.Metrics, log logger.Logger) *Server {
	return &Server{agg: agg, metrics: m, log: logger.Ensure(log)}
}

// NewEngine builds a gin engine with recovery, request logging and all routes.
func (s *Server) NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/news", s.listNews)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listNews(c *gin.Context) {
	req := aggregator.Request{
		Category:  c.Query("cat"),
		Timeframe: c.Query("timeframe"),
		Query:     c.Query("q"),
	}
	limit := parseLimit(c.Query("limit"))

	res, err := s.agg.Aggregate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCategory) || errors.Is(err, domain.ErrInvalidTimeframe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.ErrorObj("aggregate failed", "error", map[string]any{
			"category":  req.Category,
			"timeframe": req.Timeframe,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if len(res.Items) > limit {
		res.Items = res.Items[:limit]
	}
	c.JSON(http.StatusOK, res)
}

// parseLimit defaults to DefaultLimit and clamps to [1, MaxLimit].
func parseLimit(raw string) int {
	if raw == "" {
		return DefaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		path := c.FullPath()
		status := c.Writer.Status()
		s.metrics.ObserveHTTPRequest(c.Request.Method, path, status, elapsed)

		if path == "/healthz" || path == "/metrics" {
			return
		}
		s.log.InfoObj("http request", "request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"status":     status,
			"elapsed_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
	}
}
