package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/runner"
	"newsletter-digest/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	defaultNewsLimit        = 20
	defaultNewslettersLimit = 10
	maxLimit                = 100
)

type subscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// newsItem is the public shape of a stored digest item
type newsItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Category    string    `json:"category"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// GET /api/health
func (s *Server) health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(c.Request.Context()); err != nil {
		logging.Log.WithError(err).Warn("Health check: database unreachable")
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "timestamp": time.Now().UTC()})
}

// POST /api/subscribers
func (s *Server) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}

	sub, err := s.store.AddSubscriber(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrAlreadySubscribed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This email is already subscribed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": sub.ID, "email": sub.Email, "subscribedAt": sub.CreatedAt})
}

// POST /api/subscribers/unsubscribe
func (s *Server) unsubscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}

	if err := s.store.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
}

// GET /api/news?limit=20&category=Research
func (s *Server) news(c *gin.Context) {
	limit := queryLimit(c, defaultNewsLimit)

	items, err := s.store.LatestItems(c.Request.Context(), limit, c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]newsItem, 0, len(items))
	for _, it := range items {
		out = append(out, newsItem{
			ID:          it.ID,
			Title:       it.Title,
			Summary:     it.Snippet,
			Category:    it.Category,
			Source:      it.Source,
			URL:         it.URL,
			ImageURL:    it.ImageURL,
			PublishedAt: it.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/newsletters?limit=10
func (s *Server) newsletters(c *gin.Context) {
	digests, err := s.store.LatestDigests(c.Request.Context(), queryLimit(c, defaultNewslettersLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if digests == nil {
		digests = []models.PersistedDigest{}
	}
	c.JSON(http.StatusOK, digests)
}

// GET /api/newsletters/:id[?format=html]
func (s *Server) newsletter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid newsletter id"})
		return
	}

	digest, items, err := s.store.DigestByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Newsletter not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(digest.ContentHTML))
		return
	}

	if items == nil {
		items = []models.PersistedItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        digest.ID,
		"date":      digest.Date.Format("2006-01-02"),
		"headline":  digest.Headline,
		"createdAt": digest.CreatedAt,
		"items":     items,
	})
}

// POST /api/newsletter/trigger
func (s *Server) trigger(c *gin.Context) {
	// the run outlives a disconnecting client
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := s.runner.RunOnce(ctx)
	if err != nil {
		var runErr *runner.RunError
		switch {
		case errors.Is(err, runner.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &runErr):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": runErr.Err.Error(),
				"kind":  runErr.Err.Kind,
				"stage": runErr.Stage,
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "kind": failure.KindOf(err)})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) requireAdmin(c *gin.Context) {
	if s.adminToken == "" {
		c.Next()
		return
	}
	token := c.GetHeader("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Next()
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
