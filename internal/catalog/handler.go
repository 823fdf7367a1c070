package catalog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"forma/pkg/logger"
	"forma/pkg/models"
)

const (
	cacheSize = 1024
	cacheTTL  = 30 * time.Second
)

// ReferenceCounter reports how many food logs point at a catalog row.
type ReferenceCounter interface {
	CountByFoodID(ctx context.Context, foodID int64) (int, error)
}

type Handler struct {
	Repo *Repo
	Refs ReferenceCounter
	Log  *logger.Logger

	byExternalID *expirable.LRU[string, models.StoredFood]
}

func NewHandler(repo *Repo, refs ReferenceCounter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		Repo:         repo,
		Refs:         refs,
		Log:          log,
		byExternalID: expirable.NewLRU[string, models.StoredFood](cacheSize, nil, cacheTTL),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)                                 // GET /foods
	rg.GET("/:externalId", h.getByExternalID)          // GET /foods/:externalId
	rg.GET("/:externalId/references", h.getReferences) // GET /foods/:externalId/references
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:        c.Query("q"),
		Category: c.Query("category"),
		Limit:    parseInt(c.Query("limit"), 20),
		Offset:   parseInt(c.Query("offset"), 0),
	}
	if s := strings.TrimSpace(c.Query("egyptian")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "egyptian must be true or false"})
			return
		}
		q.Egyptian = &b
	}

	total, err := h.Repo.CountList(c.Request.Context(), q)
	if err != nil {
		h.Log.Error("count foods failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.Log.Error("list foods failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByExternalID(c *gin.Context) {
	f, ok := h.lookup(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f)
}

// getReferences always reads the row from the store; a cached row may have
// been retired since.
func (h *Handler) getReferences(c *gin.Context) {
	f, ok := h.lookup(c, false)
	if !ok {
		return
	}
	n, err := h.Refs.CountByFoodID(c.Request.Context(), f.ID)
	if err != nil {
		h.Log.Error("count references failed", "external_id", f.ExternalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"external_id": f.ExternalID,
		"food_id":     f.ID,
		"references":  n,
	})
}

// lookup resolves :externalId, through the cache when cached is set, and
// writes the error response itself when it returns false.
func (h *Handler) lookup(c *gin.Context, cached bool) (models.StoredFood, bool) {
	id := c.Param("externalId")
	if cached {
		if f, ok := h.byExternalID.Get(id); ok {
			return f, true
		}
	}

	f, err := h.Repo.FindByExternalID(c.Request.Context(), id)
	if err != nil {
		h.Log.Error("get food failed", "external_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return models.StoredFood{}, false
	}
	if f == nil {
		h.byExternalID.Remove(id)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return models.StoredFood{}, false
	}
	h.byExternalID.Add(id, *f)
	return *f, true
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
