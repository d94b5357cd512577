package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
)

func (h *Handler) ListWorkers(c *gin.Context) {
	workers, err := h.svc.Workers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if workers == nil {
		workers = []attendance.Worker{}
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

func (h *Handler) CreateWorker(c *gin.Context) {
	var w attendance.Worker
	if err := c.ShouldBindJSON(&w); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	created, err := h.svc.CreateWorker(c.Request.Context(), w)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateWorker replaces the editable fields; the admin UI autosaves through it.
func (h *Handler) UpdateWorker(c *gin.Context) {
	var w attendance.Worker
	if err := c.ShouldBindJSON(&w); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	updated, err := h.svc.UpdateWorker(c.Request.Context(), c.Param("id"), w)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteWorker(c *gin.Context) {
	if err := h.svc.DeleteWorker(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
