package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/brandpulse/internal/app"
	"github.com/pscheid92/brandpulse/internal/domain"
	apperrors "github.com/pscheid92/brandpulse/internal/errors"
	"github.com/pscheid92/brandpulse/internal/query"
)

type addTweetRequest struct {
	Text      string `json:"text"`
	Brand     string `json:"brand"`
	Timestamp string `json:"timestamp"`
	SourceID  string `json:"source_id"`
}

type tweetResponse struct {
	PostID       string  `json:"post_id"`
	Text         string  `json:"text"`
	Brand        string  `json:"brand"`
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source,omitempty"`
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	ModelVersion string  `json:"model_version"`
	Method       string  `json:"method,omitempty"`
}

type listTweetsResponse struct {
	Items    []tweetResponse `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Total    int64           `json:"total"`
}

type statsResponse struct {
	Positive       int64              `json:"positive"`
	Negative       int64              `json:"negative"`
	Neutral        int64              `json:"neutral"`
	Total          int64              `json:"total"`
	Percentages    map[string]float64 `json:"percentages"`
	MeanConfidence float64            `json:"mean_confidence"`
}

type timelineResponse struct {
	Granularity string          `json:"granularity"`
	Points      []timelinePoint `json:"points"`
}

type timelinePoint struct {
	WindowStart string        `json:"window_start"`
	Stats       statsResponse `json:"stats"`
}

type compareRequest struct {
	Brands []string `json:"brands"`
	From   string   `json:"from"`
	To     string   `json:"to"`
}

func (s *Server) handleAddTweet(c echo.Context) error {
	var req addTweetRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	input := app.SubmitInput{
		Text:     req.Text,
		Brand:    req.Brand,
		SourceID: req.SourceID,
		Source:   "api",
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return apperrors.ValidationError("timestamp must be RFC 3339").WithField("timestamp", req.Timestamp)
		}
		input.Timestamp = ts
	}

	record, err := s.ingest.SubmitAndWait(c.Request().Context(), input)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, toTweetResponse(record)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListTweets(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size", 10)
	if err != nil {
		return err
	}
	from, to, err := queryWindow(c)
	if err != nil {
		return err
	}

	result, err := s.queries.ListPosts(c.Request().Context(), c.QueryParam("brand"), from, to, page, pageSize)
	if err != nil {
		return err
	}

	items := make([]tweetResponse, 0, len(result.Items))
	for _, record := range result.Items {
		items = append(items, toTweetResponse(record))
	}

	// Echo the paging actually served, which may differ from the request
	// after clamping.
	resp := listTweetsResponse{Items: items, Page: result.Page, PageSize: result.PageSize, Total: result.Total}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSentimentStats(c echo.Context) error {
	from, to, err := queryWindow(c)
	if err != nil {
		return err
	}

	stats := s.queries.SentimentStats(c.Request().Context(), c.QueryParam("brand"), from, to)
	if err := c.JSON(http.StatusOK, toStatsResponse(stats)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSentimentTimeline(c echo.Context) error {
	from, to, err := queryWindow(c)
	if err != nil {
		return err
	}

	points := s.queries.Timeline(c.Request().Context(), c.QueryParam("brand"), from, to)
	resp := timelineResponse{
		Granularity: string(s.queries.Granularity()),
		Points:      make([]timelinePoint, 0, len(points)),
	}
	for _, p := range points {
		resp.Points = append(resp.Points, timelinePoint{
			WindowStart: p.WindowStart.UTC().Format(time.RFC3339),
			Stats:       toStatsResponse(p.Stats),
		})
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCompareBrands(c echo.Context) error {
	var req compareRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	from, err := parseTime(req.From, "from")
	if err != nil {
		return err
	}
	to, err := parseTime(req.To, "to")
	if err != nil {
		return err
	}

	stats, err := s.queries.CompareBrands(c.Request().Context(), req.Brands, from, to)
	if err != nil {
		return err
	}

	resp := make(map[string]statsResponse, len(stats))
	for brand, brandStats := range stats {
		resp[brand] = toStatsResponse(brandStats)
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func toTweetResponse(record domain.PersistedRecord) tweetResponse {
	return tweetResponse{
		PostID:       record.Identity,
		Text:         record.Text,
		Brand:        record.Brand,
		Timestamp:    record.Timestamp.UTC().Format(time.RFC3339),
		Source:       record.Source,
		Label:        string(record.Result.Label),
		Score:        record.Result.Confidence,
		ModelVersion: record.Result.ModelVersion,
		Method:       record.Result.Method,
	}
}

func toStatsResponse(stats query.Stats) statsResponse {
	percentages := make(map[string]float64, len(stats.Percentages))
	for label, pct := range stats.Percentages {
		percentages[string(label)] = pct
	}
	return statsResponse{
		Positive:       stats.Positive,
		Negative:       stats.Negative,
		Neutral:        stats.Neutral,
		Total:          stats.Total,
		Percentages:    percentages,
		MeanConfidence: stats.MeanConfidence,
	}
}

// queryWindow parses the optional from/to query parameters.
func queryWindow(c echo.Context) (*time.Time, *time.Time, error) {
	from, err := parseTime(c.QueryParam("from"), "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parseTime(c.QueryParam("to"), "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseTime(value, name string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.ValidationError(name + " must be RFC 3339").WithField(name, value)
	}
	return &ts, nil
}

func queryInt(c echo.Context, name string, defaultValue int) (int, error) {
	value := c.QueryParam(name)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.ValidationError(name + " must be an integer").WithField(name, value)
	}
	return n, nil
}
