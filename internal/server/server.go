// Package server serves a local preview of the site tree so contributors
// can look at their pages and check results before opening a pull request.
package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/reference"
	"github.com/avitech-lab/labsite/internal/storage"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are what the handlers read from. DB may be nil when the
// publication index has not been built.
type Deps struct {
	Tree    *tree.Tree
	Checker *check.Checker
	DB      *storage.DB
	Logger  *zap.Logger
}

type handlers struct {
	Deps
}

// New returns the preview router.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(requestID(), requestLogger(d.Logger), gin.Recovery())

	r.Static("/static/profiles", d.Tree.ProfilesDir())
	r.GET("/profiles/:name/:lang", h.page)

	api := r.Group("/api")
	{
		api.GET("/contributors", h.contributors)
		api.GET("/check", h.check)
		api.GET("/publications", h.publications)
	}
	return r
}

// RequestIDHeader carries the request ID. A client-supplied value is kept.
const RequestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (h *handlers) contributors(c *gin.Context) {
	list, err := h.Tree.Contributors()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []tree.Contributor{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) check(c *gin.Context) {
	var only []string
	if name := c.Query("contributor"); name != "" {
		only = []string{name}
	}
	report, err := h.Checker.Run(c.Request.Context(), only)
	if err != nil {
		if errors.Is(err, tree.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, tree.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) publications(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "publication index not built; run 'labsite pubs index'"})
		return
	}

	var year int
	if y := c.Query("year"); y != "" {
		var err error
		if year, err = strconv.Atoi(y); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
			return
		}
	}

	var pubs []reference.Publication
	var err error
	if q := c.Query("q"); q != "" {
		pubs, err = h.DB.Search(q, 0)
		if year > 0 {
			pubs = filterYear(pubs, year)
		}
	} else {
		pubs, err = h.DB.List(storage.ListFilter{Year: year, Contributor: c.Query("contributor")})
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if pubs == nil {
		pubs = []reference.Publication{}
	}
	c.JSON(http.StatusOK, pubs)
}

func filterYear(pubs []reference.Publication, year int) []reference.Publication {
	out := pubs[:0]
	for _, p := range pubs {
		if p.Year == year {
			out = append(out, p)
		}
	}
	return out
}

// page returns a localized page as the contributor wrote it.
func (h *handlers) page(c *gin.Context) {
	name, lang := c.Param("name"), c.Param("lang")
	if !tree.ValidName(name) || !h.Tree.Config.HasLanguage(lang) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such page"})
		return
	}
	data, err := os.ReadFile(h.Tree.PagePath(name, lang))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}
