// Package server exposes the dashboard view model as a JSON API.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeGROOVE-dev/riskboard/pkg/analysis"
	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/dashboard"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	sessionHeader   = "X-Session-ID"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Analyzer *dashboard.Analyzer
	GitHub   github.API
	Backend  analysis.API
	Cache    cache.Store
	// Health optionally reports background components, such as event invalidation.
	Health func() map[string]any
}

// Server is the riskboard JSON API.
type Server struct {
	router *gin.Engine
	deps   Deps
}

// New builds the router.
func New(deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{router: router, deps: deps}
	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	api.GET("/analysis", s.analyze)
	api.GET("/repos/:owner/:repo/pulls", s.pulls)
	api.GET("/recommendations", s.recommendations)
	api.GET("/ratelimit", s.rateLimit)
	api.GET("/cache/stats", s.cacheStats)
	api.DELETE("/cache", s.clearCache)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request", "component", "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.deps.Health != nil {
		body["events"] = s.deps.Health()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) analyze(c *gin.Context) {
	prURL := c.Query("url")
	if strings.TrimSpace(prURL) == "" {
		writeError(c, types.Validationf("url query parameter is required"))
		return
	}
	session := c.GetHeader(sessionHeader)
	if session == "" {
		session = c.DefaultQuery("session", dashboard.DefaultSessionKey)
	}

	res, err := s.deps.Analyzer.AnalyzeFor(c.Request.Context(), session, prURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) pulls(c *gin.Context) {
	perPage, err := intQuery(c, "per_page", 30)
	if err != nil {
		writeError(c, err)
		return
	}
	list, err := s.deps.Analyzer.ListPullRequests(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.DefaultQuery("state", "open"), perPage)
	if err != nil {
		writeError(c, err)
		return
	}

	filtered := normalize.FilterPullRequests(list.PullRequests, normalize.PRFilter{
		Search: c.Query("search"),
		Status: types.PRStatus(c.Query("status")),
		Author: c.Query("author"),
		Tab:    normalize.Tab(c.DefaultQuery("tab", string(normalize.TabAll))),
	})
	c.JSON(http.StatusOK, gin.H{
		"pullRequests": filtered,
		"stats":        list.Stats,
		"detailErrors": list.DetailErrors,
	})
}

func (s *Server) recommendations(c *gin.Context) {
	prID, ok := normalize.PRID(c.Query("url"))
	if !ok {
		writeError(c, types.Validationf("url must be a pull request or merge request URL"))
		return
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	pageSize, err := intQuery(c, "page_size", defaultPageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	pageSize = min(pageSize, maxPageSize)

	res, err := s.deps.Backend.RetrieveTestRecommendations(c.Request.Context(), prID)
	if err != nil {
		writeError(c, err)
		return
	}

	filter := normalize.RecommendationFilter{Search: c.Query("search"), Type: types.TestUnit}
	switch t := c.Query("type"); t {
	case "":
	case "all":
		filter.Type = ""
	default:
		filter.Type = types.TestType(t)
	}
	recs := normalize.FilterRecommendations(res.Recommendations, filter)
	recs = normalize.SortRecommendations(recs,
		normalize.SortField(c.DefaultQuery("sort", string(normalize.SortPriority))),
		c.DefaultQuery("order", "desc") == "desc")

	c.JSON(http.StatusOK, gin.H{
		"prId":     prID,
		"items":    normalize.Paginate(recs, page, pageSize),
		"total":    len(recs),
		"page":     page,
		"pageSize": pageSize,
		"fallback": res.Fallback,
		"message":  res.Message,
	})
}

func (s *Server) rateLimit(c *gin.Context) {
	state, err := s.deps.GitHub.RateLimit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Cache.Stats())
}

func (s *Server) clearCache(c *gin.Context) {
	removed := s.deps.Cache.Clear(c.Query("pattern"))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, types.Validationf("%s must be a positive integer", name)
	}
	return n, nil
}

var kindStatus = map[types.ErrorKind]int{
	types.KindValidation:   http.StatusBadRequest,
	types.KindAuthRequired: http.StatusUnauthorized,
	types.KindRateLimited:  http.StatusTooManyRequests,
	types.KindNotFound:     http.StatusNotFound,
	types.KindUpstream:     http.StatusBadGateway,
	types.KindNetwork:      http.StatusServiceUnavailable,
}

// writeError renders err with the status matching its kind.
func writeError(c *gin.Context, err error) {
	var be *analysis.BackendError
	if errors.As(err, &be) {
		c.JSON(statusFor(be.Kind()), gin.H{"kind": be.Kind(), "error": be.Message, "category": be.Category})
		return
	}
	var te *types.Error
	if errors.As(err, &te) {
		c.JSON(statusFor(te.Kind), te)
		return
	}
	slog.Error("Unclassified error", "component", "http", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"kind": types.KindUpstream, "error": "internal error"})
}

func statusFor(kind types.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
