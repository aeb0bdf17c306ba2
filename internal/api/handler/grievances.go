package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"grievance/backend/internal/config"
	"grievance/backend/internal/grievance"
	"grievance/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// ProcessGrievance handles the multipart web submission form.
func (h *Handler) ProcessGrievance(c *gin.Context) {
	// 1. Обов'язкове поле
	text := strings.TrimSpace(c.PostForm("grievance_text"))
	if text == "" {
		fail(c, http.StatusBadRequest, "Grievance text is required")
		return
	}

	sub := grievance.Submission{
		Text:   text,
		Name:   c.PostForm("name"),
		Email:  c.PostForm("email"),
		Phone:  c.PostForm("phone"),
		Source: models.SourceWeb,
		Location: models.Location{
			City:             strings.TrimSpace(c.PostForm("city")),
			State:            strings.TrimSpace(c.PostForm("state")),
			Area:             strings.TrimSpace(c.PostForm("area")),
			Place:            strings.TrimSpace(c.PostForm("place")),
			Pincode:          strings.TrimSpace(c.PostForm("pincode")),
			SpecificLocation: strings.TrimSpace(c.PostForm("specificLocation")),
		},
	}
	if raw := c.PostForm("user_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			uid := uint(id)
			sub.UserID = &uid
		}
	}

	// 2. Фото (необов'язково)
	img, err := readUpload(c, "image")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	sub.Image = img

	// 3. Конвеєр
	res, err := h.Grievances.Submit(c.Request.Context(), sub)
	if err != nil {
		h.respondError(c, err)
		return
	}

	g := res.Grievance
	var analysis any
	if res.ImageAnalysis != nil {
		analysis = res.ImageAnalysis
	}
	success(c, http.StatusOK, gin.H{
		"grievance_id":   g.GrievanceID,
		"structured":     g.StructuredText,
		"department":     g.Department,
		"priority":       g.Priority,
		"image_analysis": analysis,
		"whatsapp_sent":  res.Notification.Sent,
		"whatsapp_error": errorOrNil(res.Notification.Error),
		"phone_number":   g.Phone,
	})
}

// readUpload returns nil when the field is absent.
func readUpload(c *gin.Context, field string) (*grievance.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if fh.Size > config.MaxUploadBytes {
		return nil, fmt.Errorf("Image must be smaller than %d MB", config.MaxUploadBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("Could not read uploaded image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, config.MaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("Could not read uploaded image")
	}
	return &grievance.Image{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (h *Handler) GetUserGrievances(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	list, err := h.Storage.ListGrievancesByUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"grievances": nonNil(list)})
}

// GetDepartmentGrievances lists one department, high priority first.
func (h *Handler) GetDepartmentGrievances(c *gin.Context) {
	name := c.Param("name")
	if !models.IsDepartment(name) {
		fail(c, http.StatusNotFound, "Department not found")
		return
	}
	list, err := h.Storage.ListGrievancesByDepartment(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"department": name, "grievances": nonNil(list)})
}

func (h *Handler) GetAllGrievances(c *gin.Context) {
	list, err := h.Storage.ListAllGrievances(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"grievances": nonNil(list), "count": len(list)})
}

func (h *Handler) GetGrievance(c *gin.Context) {
	g, err := h.Storage.GetGrievanceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.notFoundOr(c, err, "Grievance not found")
		return
	}

	body := gin.H{"grievance": g}
	if phone, err := h.Storage.ContactPhone(c.Request.Context(), g.GrievanceID); err == nil {
		body["user_phone"] = phone
	}
	success(c, http.StatusOK, body)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Storage.GetGrievanceByID(c.Request.Context(), id); err != nil {
		h.notFoundOr(c, err, "Grievance not found")
		return
	}
	history, err := h.Storage.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"grievance_id": id, "history": nonNil(history)})
}

type statusRequest struct {
	Status  string `json:"status"`
	Note    string `json:"note"`
	AdminID *uint  `json:"admin_id"`
}

// UpdateStatus moves a grievance to another stage.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	adminID, ok := actingAdmin(c, req.AdminID)
	if !ok {
		return
	}

	res, err := h.Grievances.UpdateStatus(c.Request.Context(), grievance.StatusChange{
		GrievanceID: c.Param("id"),
		Status:      strings.TrimSpace(req.Status),
		Note:        req.Note,
		AdminID:     &adminID,
	})
	if err != nil {
		h.notFoundOr(c, err, "Grievance not found")
		return
	}

	success(c, http.StatusOK, gin.H{
		"message":        res.Message(),
		"old_status":     res.OldStatus,
		"new_status":     res.NewStatus,
		"whatsapp_sent":  res.Notification.Sent,
		"whatsapp_error": errorOrNil(res.Notification.Error),
	})
}

type closeRequest struct {
	Note    string `json:"note"`
	AdminID *uint  `json:"admin_id"`
}

// CloseGrievance verifies the resolution note before closing.
func (h *Handler) CloseGrievance(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	adminID, ok := actingAdmin(c, req.AdminID)
	if !ok {
		return
	}

	res, err := h.Grievances.CloseWithVerification(c.Request.Context(), grievance.ClosureRequest{
		GrievanceID: c.Param("id"),
		Note:        req.Note,
		AdminID:     &adminID,
	})
	if err != nil {
		h.notFoundOr(c, err, "Grievance not found")
		return
	}

	success(c, http.StatusOK, gin.H{
		"approved":       res.Verdict.Approved,
		"reason":         res.Verdict.Reason,
		"verified_by":    res.Verdict.Source,
		"old_status":     res.Transition.OldStatus,
		"new_status":     res.Transition.NewStatus,
		"whatsapp_sent":  res.Notification.Sent,
		"whatsapp_error": errorOrNil(res.Notification.Error),
	})
}

// actingAdmin takes the actor from the admin token set by RequireAdmin.
// A body admin_id is optional but must name the same account.
func actingAdmin(c *gin.Context, bodyID *uint) (uint, bool) {
	claims := c.MustGet(claimsKey).(*Claims)
	id, err := claims.AccountID()
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid token or expired")
		return 0, false
	}
	if bodyID != nil && *bodyID != id {
		fail(c, http.StatusForbidden, "admin_id does not match the authenticated admin")
		return 0, false
	}
	return id, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
