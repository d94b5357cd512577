package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/auth"
	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// DeviceStore keeps kiosk registrations and their refresh tokens.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, token string) (string, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the HTTP API.
type Handler struct {
	svc             *attendance.Service
	devices         DeviceStore
	issuer          *auth.Issuer
	registrationKey string
	maxPhotoBytes   int64
	checks          map[string]HealthCheck
	deviceMW        []gin.HandlerFunc
	log             *slog.Logger
}

// Config carries the optional handler settings.
type Config struct {
	RegistrationKey string
	MaxPhotoBytes   int64
	HealthChecks    map[string]HealthCheck
	Logger          *slog.Logger

	// DeviceMiddleware runs before the unauthenticated device endpoints.
	DeviceMiddleware []gin.HandlerFunc
}

// New creates a handler.
func New(svc *attendance.Service, devices DeviceStore, issuer *auth.Issuer, cfg Config) *Handler {
	h := &Handler{
		svc:             svc,
		devices:         devices,
		issuer:          issuer,
		registrationKey: cfg.RegistrationKey,
		maxPhotoBytes:   cfg.MaxPhotoBytes,
		checks:          cfg.HealthChecks,
		deviceMW:        cfg.DeviceMiddleware,
		log:             cfg.Logger,
	}
	if h.maxPhotoBytes <= 0 {
		h.maxPhotoBytes = 8 << 20
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

// Routes mounts every endpoint on r. protected runs before the /v1 routes
// that need a kiosk token.
func (h *Handler) Routes(r gin.IRouter, protected ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)
	devices := r.Group("/v1/devices", h.deviceMW...)
	devices.POST("/register", h.RegisterDevice)
	devices.POST("/refresh", h.RefreshDevice)

	v1 := r.Group("/v1", protected...)

	v1.GET("/workers", h.ListWorkers)
	v1.POST("/workers", h.CreateWorker)
	v1.PUT("/workers/:id", h.UpdateWorker)
	v1.DELETE("/workers/:id", h.DeleteWorker)

	v1.GET("/attendance", h.ListAttendance)
	v1.POST("/attendance/refresh", h.Refresh)
	v1.GET("/attendance/week", h.WeekGrid)
	v1.GET("/attendance/:worker_id/:date", h.Day)
	v1.POST("/attendance/:worker_id/entry", h.captureHandler(timecontrol.Entry))
	v1.POST("/attendance/:worker_id/exit", h.captureHandler(timecontrol.Exit))
	v1.DELETE("/attendance/:worker_id/pending", h.Abandon)

	v1.GET("/totals/weekly", h.WeeklyTotals)
	v1.GET("/totals/monthly", h.MonthlyTotals)
	v1.GET("/reports/monthly", h.MonthlyReport)
}

var errBadRequest = errors.New("bad request")

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, timecontrol.ErrInvalidPrecondition),
		errors.Is(err, attendance.ErrCaptureInProgress),
		errors.Is(err, attendance.ErrCaptureAbandoned),
		errors.Is(err, attendance.ErrCaptureStoring),
		errors.Is(err, attendance.ErrDuplicateCedula):
		status = http.StatusConflict
	case errors.Is(err, attendance.ErrWorkerNotFound),
		errors.Is(err, attendance.ErrRecordNotFound),
		errors.Is(err, attendance.ErrNoPendingCapture):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrInvalidWorker),
		errors.Is(err, attendance.ErrWorkerRequired),
		errors.Is(err, attendance.ErrPhotoRequired),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrRefreshTokenInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, attendance.ErrPhotoUpload):
		status = http.StatusBadGateway
	case errors.Is(err, attendance.ErrCaptureTimeout):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Healthz reports every dependency; any failing check turns the status to 503.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "ledger_records": h.svc.Ledger().Len()}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// RegisterDevice enrolls a kiosk and issues its first token pair.
func (h *Handler) RegisterDevice(c *gin.Context) {
	if h.registrationKey != "" && c.GetHeader("X-Registration-Key") != h.registrationKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid registration key"})
		return
	}
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.devices.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
		h.fail(c, err)
		return
	}
	h.issueTokens(c, req.DeviceID, http.StatusCreated)
}

// RefreshDevice exchanges a refresh token for a new pair.
func (h *Handler) RefreshDevice(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	deviceID, err := h.devices.ConsumeRefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	if deviceID != claims.Subject {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "device mismatch"})
		return
	}
	h.issueTokens(c, deviceID, http.StatusOK)
}

func (h *Handler) issueTokens(c *gin.Context, deviceID string, status int) {
	tokens, err := h.issuer.Issue(deviceID, auth.RoleKiosk)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.devices.SaveRefreshToken(c.Request.Context(), deviceID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
