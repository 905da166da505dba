package admin

import (
	"context"
	"errors"
	"net/http"

	"WarRoster/internal/roster"

	"github.com/gin-gonic/gin"
)

type RosterService interface {
	ListAll(ctx context.Context) (roster.Listing, error)
	ClearAll(ctx context.Context) error
	RemoveAll(ctx context.Context, c roster.Category, name string) (roster.Result, error)
	Stats() roster.GateStats
}

type Handler struct {
	svc RosterService
}

func NewHandler(svc RosterService) *Handler {
	return &Handler{svc: svc}
}

type RemoveRequest struct {
	Category string `json:"category" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// busy 与其他错误区分：busy 用 409，调用方可以稍后重试
func respondErr(c *gin.Context, err error) {
	if errors.Is(err, roster.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// GET /admin/roster
func (h *Handler) Roster(c *gin.Context) {
	l, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// POST /admin/clear
func (h *Handler) Clear(c *gin.Context) {
	if err := h.svc.ClearAll(c.Request.Context()); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /admin/remove body: {category, name}
func (h *Handler) Remove(c *gin.Context) {
	var req RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat, err := roster.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.RemoveAll(c.Request.Context(), cat, req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": res.Outcome.String(), "removed": res.Removed})
}

// GET /admin/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}
