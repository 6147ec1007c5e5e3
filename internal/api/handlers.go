package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/models"
	"github.com/axellelanca/shortlink/internal/services"
)

// Version is reported by the health endpoint.
var Version = "1.0"

// SetupRoutes configures all Gin API routes and injects necessary dependencies.
// Every route carrying a :code parameter goes through ValidateShortCodeParam.
func SetupRoutes(router *gin.Engine, linkService *services.LinkService, baseURL string) {
	health := HealthCheckHandler(linkService)
	router.GET("/healthz", health)
	router.GET("/health", health)

	api := router.Group("/api")
	{
		api.POST("/links", CreateShortLinkHandler(linkService, baseURL))
		api.GET("/links", ListLinksHandler(linkService, baseURL))
		api.GET("/links/:code", ValidateShortCodeParam(), GetLinkStatsHandler(linkService, baseURL))
		api.DELETE("/links/:code", ValidateShortCodeParam(), DeleteLinkHandler(linkService))
	}

	router.GET("/code/:code", ValidateShortCodeParam(), GetLinkStatsHandler(linkService, baseURL))

	// Redirection Route - handles the actual URL redirection at root level
	router.GET("/:code", ValidateShortCodeParam(), RedirectHandler(linkService))
}

// HealthCheckHandler reports whether the store answers.
func HealthCheckHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		ok := true
		if err := linkService.Ping(c.Request.Context()); err != nil {
			logger.FromContext(c.Request.Context()).Error("health check failed", "err", err)
			status = http.StatusServiceUnavailable
			ok = false
		}
		c.JSON(status, gin.H{
			"ok":        ok,
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// CreateLinkRequest is the JSON body accepted by POST /api/links.
// {"target_url": "example.com/a", "code": "abc123"}
type CreateLinkRequest struct {
	TargetURL string `json:"target_url" binding:"required"`
	Code      string `json:"code"`
}

// LinkResponse is a link as returned by the API, with its full short URL.
type LinkResponse struct {
	models.Link
	ShortURL string `json:"short_url"`
}

func newLinkResponse(link *models.Link, baseURL string) LinkResponse {
	return LinkResponse{Link: *link, ShortURL: baseURL + "/" + link.Code}
}

// Pagination mirrors the listing metadata the frontend expects.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Start      int   `json:"start"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// ListLinksResponse is the body of GET /api/links.
type ListLinksResponse struct {
	Data       []LinkResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// listQuery accepts either start/limit or page/limit. start wins when both
// start and page are present.
type listQuery struct {
	Start *int `form:"start"`
	Page  *int `form:"page"`
	Limit *int `form:"limit"`
}

// window converts the query into an offset and a limit.
func (q listQuery) window() (offset, limit int, err error) {
	limit = services.DefaultPageSize
	if q.Limit != nil {
		limit = *q.Limit
	}
	switch {
	case q.Start != nil:
		offset = *q.Start
	case q.Page != nil:
		if *q.Page < 1 {
			return 0, 0, customerrors.ErrValidationFailed{Field: "page", Reason: "must be at least 1", Err: customerrors.ErrInvalidPagination}
		}
		if limit > 0 && *q.Page-1 > math.MaxInt/limit {
			return 0, 0, customerrors.ErrValidationFailed{Field: "page", Reason: "too large", Err: customerrors.ErrInvalidPagination}
		}
		offset = (*q.Page - 1) * limit
	}
	return offset, limit, nil
}

// CreateShortLinkHandler handles POST /api/links.
func CreateShortLinkHandler(linkService *services.LinkService, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, "URL is required")
			return
		}

		link, err := linkService.CreateLink(c.Request.Context(), req.TargetURL, req.Code)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, newLinkResponse(link, baseURL))
	}
}

// ListLinksHandler handles GET /api/links?start=&limit= and ?page=&limit=.
func ListLinksHandler(linkService *services.LinkService, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			jsonError(c, http.StatusBadRequest, "start, page and limit must be integers")
			return
		}
		offset, limit, err := q.window()
		if err != nil {
			writeError(c, err)
			return
		}

		page, err := linkService.ListLinks(c.Request.Context(), offset, limit)
		if err != nil {
			writeError(c, err)
			return
		}

		data := make([]LinkResponse, 0, len(page.Links))
		for i := range page.Links {
			data = append(data, newLinkResponse(&page.Links[i], baseURL))
		}
		c.JSON(http.StatusOK, ListLinksResponse{
			Data:       data,
			Pagination: paginate(page),
		})
	}
}

func paginate(p *services.LinkPage) Pagination {
	return Pagination{
		Page:       p.Offset/p.Limit + 1,
		Limit:      p.Limit,
		Start:      p.Offset,
		Total:      p.Total,
		TotalPages: int(math.Ceil(float64(p.Total) / float64(p.Limit))),
		HasNext:    int64(p.Offset+len(p.Links)) < p.Total,
		HasPrev:    p.Offset > 0,
	}
}

// GetLinkStatsHandler returns the link with its click counter.
func GetLinkStatsHandler(linkService *services.LinkService, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := linkService.GetLinkByShortCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, newLinkResponse(link, baseURL))
	}
}

// DeleteLinkHandler handles DELETE /api/links/:code.
func DeleteLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := linkService.DeleteLink(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully", "link": link})
	}
}

// RedirectHandler handles the redirection from a short URL to the original long URL.
// The click is committed before the 302 is written; if it cannot be recorded
// the request fails instead of redirecting.
func RedirectHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := linkService.RecordClickAndResolve(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Redirect(http.StatusFound, link.TargetURL)
	}
}

// statusFor maps an application error kind to its HTTP status and public message.
func statusFor(err error) (int, string) {
	var validation customerrors.ErrValidationFailed
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, customerrors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, customerrors.ErrShortCodeTaken):
		return http.StatusConflict, "Code already exists"
	case errors.Is(err, customerrors.ErrShortCodeNotFound):
		return http.StatusNotFound, "Link not found"
	case errors.Is(err, customerrors.ErrShortCodeGenerationFailed):
		return http.StatusInternalServerError, "Failed to generate unique code"
	case errors.Is(err, customerrors.ErrDatabaseConnection):
		return http.StatusServiceUnavailable, "Database connection failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", "status", status, "err", err)
	}
	jsonError(c, status, msg)
}

func jsonError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
