package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staffattendance/internal/attendance"
	"staffattendance/internal/report"
)

// Daily lists one date's records with their status counts. ?date= defaults to
// today.
func (h *Handler) Daily(c *gin.Context) {
	snap, err := h.reporting.Daily(c.Request.Context(), c.Query("date"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "daily attendance loaded", snap)
}

// Monthly lists a month's records, optionally for one user.
func (h *Handler) Monthly(c *gin.Context) {
	year, month, valid := h.period(c)
	if !valid {
		return
	}
	records, err := h.reporting.Monthly(c.Request.Context(), year, int(month), c.Query("user_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	ok(c, http.StatusOK, "monthly attendance loaded", gin.H{
		"year":    year,
		"month":   int(month),
		"records": records,
	})
}

// Dashboard returns today's headline numbers and the seven day trend.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.reporting.Dashboard(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "dashboard loaded", d)
}

// Trend returns the seven day trend on its own for charts that refresh it
// separately from the dashboard.
func (h *Handler) Trend(c *gin.Context) {
	points, err := h.reporting.WeeklyTrend(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "weekly trend loaded", points)
}

// Report streams a monthly export as an Excel workbook or a PDF.
func (h *Handler) Report(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, "format must be excel or pdf")
		return
	}
	year, month, valid := h.period(c)
	if !valid {
		return
	}
	records, err := h.reporting.Monthly(c.Request.Context(), year, int(month), c.Query("user_id"))
	if err != nil {
		failErr(c, err)
		return
	}

	var body []byte
	switch format {
	case report.FormatPDF:
		body, err = report.PDF(records, "Staff Attendance Report", report.Period(year, month), h.loc)
	default:
		body, err = report.Excel(records, report.Period(year, month), h.loc)
	}
	if err != nil {
		failErr(c, fmt.Errorf("render %s report: %w", format, err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(format, year, month)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, format.ContentType(), body)
}

// period reads ?year= and ?month=, defaulting to the current month in the
// school's timezone.
func (h *Handler) period(c *gin.Context) (int, time.Month, bool) {
	now := h.clock.Now().In(h.loc)
	year, valid := intQuery(c, "year", now.Year())
	if !valid {
		return 0, 0, false
	}
	month, valid := intQuery(c, "month", int(now.Month()))
	if !valid {
		return 0, 0, false
	}
	if month < 1 || month > 12 {
		badRequest(c, "month must be between 1 and 12")
		return 0, 0, false
	}
	if year < 1 || year > 9999 {
		badRequest(c, "year is invalid")
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// UpdateRecord applies an administrative correction to a record.
func (h *Handler) UpdateRecord(c *gin.Context) {
	var req attendance.RecordUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "check_in and check_out must be RFC 3339 timestamps")
		return
	}
	rec, err := h.engine.UpdateRecord(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		failErr(c, err)
		return
	}
	h.publish(c, attendance.EventRecordUpdated, rec)
	ok(c, http.StatusOK, "attendance record updated", rec)
}

// Events lists the audit trail, newest first, optionally for one user.
func (h *Handler) Events(c *gin.Context) {
	limit, valid := intQuery(c, "limit", 50)
	if !valid {
		return
	}
	offset, valid := intQuery(c, "offset", 0)
	if !valid {
		return
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	events, err := h.events.ListEvents(c.Request.Context(), c.Query("user_id"), limit, offset)
	if err != nil {
		failErr(c, err)
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	ok(c, http.StatusOK, "events loaded", gin.H{"events": events, "limit": limit, "offset": offset})
}
