// Package handler exposes the attendance service over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"staffattendance/internal/attendance"
	"staffattendance/internal/auth"
	"staffattendance/internal/clock"
	"staffattendance/internal/logger"
	"staffattendance/internal/metrics"
	"staffattendance/internal/queue"
	"staffattendance/internal/settings"
	"staffattendance/internal/users"
)

// Engine is the attendance rules engine.
type Engine interface {
	CheckIn(ctx context.Context, userID string, loc attendance.Location, originIP string) (attendance.Outcome, error)
	CheckOut(ctx context.Context, userID string, loc attendance.Location) (attendance.Outcome, error)
	CheckDistance(ctx context.Context, loc attendance.Location) (attendance.DistanceCheck, error)
	TodayStatus(ctx context.Context, userID string) (*attendance.Record, error)
	History(ctx context.Context, userID string, page, limit int) (attendance.Page, error)
	UpdateRecord(ctx context.Context, id string, u attendance.RecordUpdate) (attendance.Record, error)
}

// Reporting answers the aggregate queries.
type Reporting interface {
	Daily(ctx context.Context, date string) (attendance.DailySnapshot, error)
	Monthly(ctx context.Context, year, month int, userID string) ([]attendance.Record, error)
	Dashboard(ctx context.Context) (attendance.Dashboard, error)
	WeeklyTrend(ctx context.Context) ([]attendance.TrendPoint, error)
}

// SettingsService reads and saves the school configuration.
type SettingsService interface {
	Current(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, s settings.Settings) (settings.Settings, error)
}

// Accounts manages user accounts.
type Accounts interface {
	List(ctx context.Context, role users.Role) ([]users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	Create(ctx context.Context, in users.CreateInput) (users.User, error)
	Update(ctx context.Context, id string, in users.UpdateInput) (users.User, error)
	Delete(ctx context.Context, id string) error
}

// Sessions issues and revokes tokens.
type Sessions interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

// EventLog lists the persisted audit trail.
type EventLog interface {
	ListEvents(ctx context.Context, userID string, limit, offset int) ([]attendance.Event, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options wires a Handler.
type Options struct {
	Engine    Engine
	Reporting Reporting
	Settings  SettingsService
	Accounts  Accounts
	Sessions  Sessions
	Events    EventLog
	Queue     queue.Queue
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Location  *time.Location
	Health    map[string]HealthCheck
}

// Handler holds the HTTP endpoints.
type Handler struct {
	engine    Engine
	reporting Reporting
	settings  SettingsService
	accounts  Accounts
	sessions  Sessions
	events    EventLog
	queue     queue.Queue
	metrics   *metrics.Metrics
	clock     clock.Clock
	loc       *time.Location
	health    map[string]HealthCheck
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem(opts.Location)
	}
	return &Handler{
		engine:    opts.Engine,
		reporting: opts.Reporting,
		settings:  opts.Settings,
		accounts:  opts.Accounts,
		sessions:  opts.Sessions,
		events:    opts.Events,
		queue:     opts.Queue,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		loc:       opts.Location,
		health:    opts.Health,
	}
}

func ok(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, kind attendance.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "kind": kind, "message": message})
}

// failErr maps a service error to its HTTP status and body.
func failErr(c *gin.Context, err error) {
	var ae *attendance.Error
	if errors.As(err, &ae) {
		status := statusFor(ae.Kind)
		body := gin.H{"success": false, "kind": ae.Kind, "message": ae.Message}
		if ae.Reason != "" {
			body["reason"] = ae.Reason
		}
		if ae.Distance != nil {
			body["distance"] = *ae.Distance
		}
		if status >= http.StatusInternalServerError {
			logger.FromGin(c).Error("request failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	var sve *settings.ValidationError
	var uve *users.ValidationError
	switch {
	case errors.As(err, &sve):
		fail(c, http.StatusBadRequest, attendance.KindInvalidInput, sve.Message)
	case errors.As(err, &uve):
		fail(c, http.StatusBadRequest, attendance.KindInvalidInput, uve.Message)
	case errors.Is(err, users.ErrDuplicate):
		fail(c, http.StatusConflict, attendance.KindDuplicate, "email already registered")
	case errors.Is(err, users.ErrNotFound):
		fail(c, http.StatusNotFound, attendance.KindNotFound, "user not found")
	case errors.Is(err, users.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, attendance.KindUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongKind), errors.Is(err, auth.ErrTokenRevoked):
		fail(c, http.StatusUnauthorized, attendance.KindUnauthorized, "invalid or expired token")
	default:
		logger.FromGin(c).Error("request failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, attendance.KindPersistence, "internal server error")
	}
}

func statusFor(kind attendance.Kind) int {
	switch kind {
	case attendance.KindInvalidInput:
		return http.StatusBadRequest
	case attendance.KindDuplicate:
		return http.StatusConflict
	case attendance.KindGeofence, attendance.KindTemporal:
		return http.StatusUnprocessableEntity
	case attendance.KindUnauthorized:
		return http.StatusUnauthorized
	case attendance.KindForbidden:
		return http.StatusForbidden
	case attendance.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, attendance.KindInvalidInput, message)
}

// originIP prefers proxy headers so check-ins behind a load balancer record
// the client's address.
func originIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(c.GetHeader("X-Real-IP")); xr != "" {
		return xr
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func principal(c *gin.Context) (auth.Principal, bool) {
	p, found := auth.CurrentPrincipal(c)
	if !found {
		fail(c, http.StatusUnauthorized, attendance.KindUnauthorized, "unauthorized")
	}
	return p, found
}

// publish sends an audit event. Failures are logged and never fail the request.
func (h *Handler) publish(c *gin.Context, t attendance.EventType, rec attendance.Record) {
	if h.queue == nil {
		return
	}
	log := logger.FromGin(c)
	evt, err := attendance.NewEvent(t, rec, h.clock.Now())
	if err != nil {
		log.Warn("encode attendance event", zap.Error(err))
		return
	}
	msg, err := queue.NewMessage(string(t), evt)
	if err != nil {
		log.Warn("encode queue message", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
	defer cancel()
	if err := h.queue.Publish(ctx, msg); err != nil {
		log.Warn("queue publish failed", zap.String("event_type", string(t)), zap.Error(err))
	}
}
