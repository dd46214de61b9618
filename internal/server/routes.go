package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no rate limit)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api", newRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst))

	api.POST("/tweets", s.handleAddTweet)
	api.GET("/tweets", s.handleListTweets)
	api.GET("/sentiment_stats", s.handleSentimentStats)
	api.GET("/sentiment_timeline", s.handleSentimentTimeline)
	api.POST("/compare", s.handleCompareBrands)
}
