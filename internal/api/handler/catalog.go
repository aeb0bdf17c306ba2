package handler

import (
	"net/http"
	"time"

	"grievance/backend/internal/analysis"
	"grievance/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetDepartments(c *gin.Context) {
	list, err := h.Storage.ListDepartments(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"departments": nonNil(list)})
}

func (h *Handler) GetStatusStages(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"stages": models.StatusStages})
}

// GetAdminProfile returns the admin with their department and its counters.
func (h *Handler) GetAdminProfile(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	admin, err := h.Storage.GetAdminByID(ctx, id)
	if err != nil {
		h.notFoundOr(c, err, "Admin not found")
		return
	}
	dept, err := h.Storage.GetDepartment(ctx, admin.Department)
	if err != nil {
		h.respondError(c, err)
		return
	}
	counts, err := h.Storage.DashboardCounts(ctx, admin.Department)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, gin.H{
		"admin":      admin,
		"department": dept,
		"stats": gin.H{
			"total":       counts.Total,
			"by_status":   counts.ByStatus,
			"by_priority": counts.ByPriority,
		},
	})
}

// GetDashboardStats builds the admin dashboard for the admin's department.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	admin, err := h.Storage.GetAdminByID(ctx, id)
	if err != nil {
		h.notFoundOr(c, err, "Admin not found")
		return
	}
	counts, err := h.Storage.DashboardCounts(ctx, admin.Department)
	if err != nil {
		h.respondError(c, err)
		return
	}
	list, err := h.Storage.ListGrievancesByDepartment(ctx, admin.Department)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, gin.H{"stats": analysis.BuildDashboard(admin.Department, counts, list, time.Now())})
}
