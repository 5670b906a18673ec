package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/askgov/internal/auth"
	"github.com/MarcoPoloResearchLab/askgov/internal/catalog"
	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	staffClaimsContextKey = "askgov_staff_claims"
	requestIDContextKey   = "askgov_request_id"
	requestIDHeader       = "X-Request-ID"
)

var (
	errMissingCatalogService   = errors.New("catalog service dependency required")
	errMissingSearchService    = errors.New("search service dependency required")
	errMissingSessionValidator = errors.New("session validator dependency required")
)

// CatalogService is the catalog surface served over HTTP.
type CatalogService interface {
	IndexName() string
	ListPosts(ctx context.Context, filters catalog.ListFilters) (catalog.ListResult, error)
	ListAnswerablePosts(ctx context.Context, agencyID uint, filters catalog.ListFilters, withAnswers bool) (catalog.ListResult, error)
	GetSinglePost(ctx context.Context, postID uint, relatedCount int) (catalog.PostDetail, error)
	RecordView(ctx context.Context, postID uint) error
	CreatePost(ctx context.Context, input catalog.CreatePostInput) (catalog.Post, error)
	UpdatePost(ctx context.Context, input catalog.UpdatePostInput) (catalog.Post, error)
	DeletePost(ctx context.Context, postID uint) error
	RecordAnswer(ctx context.Context, input catalog.RecordAnswerInput) (catalog.Answer, error)
}

// PostSearcher runs free-text queries against the search index.
type PostSearcher interface {
	SearchPosts(ctx context.Context, index string, text string, agencyID *uint) ([]search.Hit, error)
}

// SessionValidator authenticates agency staff.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.StaffClaims, error)
}

type Dependencies struct {
	Catalog  CatalogService
	Search   PostSearcher
	Sessions SessionValidator
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}
	if deps.Search == nil {
		return nil, errMissingSearchService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLogMiddleware(logger))
	router.Use(corsMiddleware())

	handler := &httpHandler{
		catalog:  deps.Catalog,
		searcher: deps.Search,
		sessions: deps.Sessions,
		logger:   logger,
	}

	router.GET("/posts", handler.handleListPosts)
	router.GET("/posts/:id", handler.handleGetPost)
	router.GET("/search", handler.handleSearch)

	staff := router.Group("/")
	staff.Use(handler.authorizeStaff)
	staff.GET("/agency/posts/answerable", handler.handleListAnswerable)
	staff.POST("/posts", handler.handleCreatePost)
	staff.PUT("/posts/:id", handler.handleUpdatePost)
	staff.DELETE("/posts/:id", handler.handleDeletePost)
	staff.POST("/posts/:id/answers", handler.handleRecordAnswer)

	return router, nil
}

type httpHandler struct {
	catalog  CatalogService
	searcher PostSearcher
	sessions SessionValidator
	logger   *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func requestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)))
	}
}

func (h *httpHandler) authorizeStaff(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		fields := []zap.Field{zap.String("request_id", c.GetString(requestIDContextKey)), zap.Error(err)}
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("staff session rejected", fields...)
		} else {
			h.logger.Warn("staff session rejected", fields...)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(staffClaimsContextKey, claims)
	c.Next()
}

func staffClaims(c *gin.Context) (auth.StaffClaims, bool) {
	value, ok := c.Get(staffClaimsContextKey)
	if !ok {
		return auth.StaffClaims{}, false
	}
	claims, ok := value.(auth.StaffClaims)
	return claims, ok
}
