package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"staffattendance/internal/attendance"
	"staffattendance/internal/users"
)

type locationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Accuracy  *float64 `json:"accuracy" binding:"required"`
}

func (r locationRequest) location() attendance.Location {
	return attendance.Location{Latitude: *r.Latitude, Longitude: *r.Longitude, Accuracy: *r.Accuracy}
}

func bindLocation(c *gin.Context) (attendance.Location, bool) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "latitude, longitude and accuracy are required")
		return attendance.Location{}, false
	}
	return req.location(), true
}

// CheckIn records the caller's arrival for today.
func (h *Handler) CheckIn(c *gin.Context) {
	p, found := principal(c)
	if !found {
		return
	}
	loc, valid := bindLocation(c)
	if !valid {
		h.metrics.Reject("check_in", string(attendance.KindInvalidInput))
		return
	}

	out, err := h.engine.CheckIn(c.Request.Context(), p.UserID, loc, originIP(c))
	if err != nil {
		h.metrics.Reject("check_in", string(attendance.KindOf(err)))
		failErr(c, err)
		return
	}
	h.metrics.CheckIn(string(out.Record.Status), out.Distance)
	h.publish(c, attendance.EventCheckIn, out.Record)
	ok(c, http.StatusCreated, out.Message, outcomeBody(out))
}

// CheckOut closes the caller's record for today.
func (h *Handler) CheckOut(c *gin.Context) {
	p, found := principal(c)
	if !found {
		return
	}
	loc, valid := bindLocation(c)
	if !valid {
		h.metrics.Reject("check_out", string(attendance.KindInvalidInput))
		return
	}

	out, err := h.engine.CheckOut(c.Request.Context(), p.UserID, loc)
	if err != nil {
		h.metrics.Reject("check_out", string(attendance.KindOf(err)))
		failErr(c, err)
		return
	}
	h.metrics.CheckOut()
	h.publish(c, attendance.EventCheckOut, out.Record)
	ok(c, http.StatusOK, out.Message, outcomeBody(out))
}

func outcomeBody(out attendance.Outcome) gin.H {
	body := gin.H{"record": out.Record}
	if out.Distance != nil {
		body["distance"] = *out.Distance
	}
	return body
}

// Distance reports how far the caller is from school without recording
// anything.
func (h *Handler) Distance(c *gin.Context) {
	loc, valid := bindLocation(c)
	if !valid {
		return
	}
	check, err := h.engine.CheckDistance(c.Request.Context(), loc)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, check.Message, check)
}

// Today returns the caller's record for today, or null.
func (h *Handler) Today(c *gin.Context) {
	p, found := principal(c)
	if !found {
		return
	}
	rec, err := h.engine.TodayStatus(c.Request.Context(), p.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	message := "not checked in today"
	if rec != nil {
		message = "attendance found"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "data": rec})
}

// History pages through the caller's records. Admins and principals may read
// another user's history with ?user_id=.
func (h *Handler) History(c *gin.Context) {
	p, found := principal(c)
	if !found {
		return
	}
	userID := p.UserID
	if other := c.Query("user_id"); other != "" && other != p.UserID {
		if p.Role != users.RoleAdmin && p.Role != users.RolePrincipal {
			fail(c, http.StatusForbidden, attendance.KindForbidden, "cannot read another user's history")
			return
		}
		userID = other
	}

	page, valid := intQuery(c, "page", 1)
	if !valid {
		return
	}
	limit, valid := intQuery(c, "limit", 0)
	if !valid {
		return
	}
	result, err := h.engine.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "history loaded", result)
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return n, true
}
