package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"staffattendance/internal/settings"
	"staffattendance/internal/users"
)

// GetSettings returns the school configuration. An unconfigured school
// returns zero values with geofencing disabled.
func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.settings.Current(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "settings loaded", gin.H{
		"settings":         s,
		"geofence_enabled": s.GeofenceEnabled(),
	})
}

// SaveSettings validates and stores the school configuration.
func (h *Handler) SaveSettings(c *gin.Context) {
	var in settings.Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid settings payload")
		return
	}
	saved, err := h.settings.Save(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "settings saved", saved)
}

// ListTeachers lists accounts. ?role= selects another role; teachers are the
// default.
func (h *Handler) ListTeachers(c *gin.Context) {
	role := users.Role(c.DefaultQuery("role", string(users.RoleTeacher)))
	if !role.Valid() {
		badRequest(c, "role must be teacher, admin or principal")
		return
	}
	list, err := h.accounts.List(c.Request.Context(), role)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []users.User{}
	}
	ok(c, http.StatusOK, "accounts loaded", list)
}

// CreateTeacher registers an account. The role defaults to teacher.
func (h *Handler) CreateTeacher(c *gin.Context) {
	var in users.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid account payload")
		return
	}
	if in.Role == "" {
		in.Role = users.RoleTeacher
	}
	u, err := h.accounts.Create(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "account created", u)
}

// UpdateTeacher changes an account's name, email or password.
func (h *Handler) UpdateTeacher(c *gin.Context) {
	var in users.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid account payload")
		return
	}
	u, err := h.accounts.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "account updated", u)
}

// DeleteTeacher removes an account and its attendance history.
func (h *Handler) DeleteTeacher(c *gin.Context) {
	if p, found := principal(c); !found {
		return
	} else if p.UserID == c.Param("id") {
		badRequest(c, "cannot delete your own account")
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "account deleted", nil)
}
