package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"grievance/backend/internal/grievance"
	"grievance/backend/internal/livefeed"
	"grievance/backend/internal/models"
	"grievance/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Grievances is the orchestrator surface used by the HTTP layer.
type Grievances interface {
	Submit(ctx context.Context, sub grievance.Submission) (*grievance.SubmitResult, error)
	UpdateStatus(ctx context.Context, req grievance.StatusChange) (*grievance.StatusResult, error)
	CloseWithVerification(ctx context.Context, req grievance.ClosureRequest) (*grievance.ClosureResult, error)
	HandleInbound(ctx context.Context, msg grievance.InboundMessage) (string, error)
}

// AccountChecker reports the messaging provider account status for /test_twilio.
type AccountChecker interface {
	AccountStatus(ctx context.Context) (string, error)
}

// MediaFetcher downloads webhook attachments.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Options carry the settings the handlers need from config.Config.
type Options struct {
	TwilioAccountSID  string
	TwilioAuthToken   string
	ValidateSignature bool
	// PublicBaseURL is the externally visible origin used to verify webhook signatures.
	PublicBaseURL string
	LLMEnabled    bool
}

// Handler містить залежності HTTP-шару
type Handler struct {
	Storage    storage.Storage
	Grievances Grievances
	Hub        *livefeed.Hub
	Auth       *Auth
	Twilio     AccountChecker
	Media      MediaFetcher
	Ping       func(ctx context.Context) error
	Options    Options
	log        *zap.Logger
}

func NewHandler(s storage.Storage, g Grievances, hub *livefeed.Hub, auth *Auth, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Storage:    s,
		Grievances: g,
		Hub:        hub,
		Auth:       auth,
		log:        log.With(zap.String("component", "http")),
	}
}

func success(c *gin.Context, code int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["status"] = "success"
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": message})
}

// respondError maps domain errors to HTTP codes. Unknown errors become a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grievance.ErrEmptyText):
		fail(c, http.StatusBadRequest, "Grievance text is required")
	case errors.Is(err, grievance.ErrEmptyNote):
		fail(c, http.StatusBadRequest, "Closure note is required")
	case errors.Is(err, storage.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, "Invalid status. Must be one of: "+strings.Join(models.StatusStages, ", "))
	case errors.Is(err, storage.ErrInvalidPriority):
		fail(c, http.StatusBadRequest, "Invalid priority")
	case errors.Is(err, storage.ErrUnknownDepartment):
		fail(c, http.StatusBadRequest, "Unknown department")
	case errors.Is(err, storage.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		fail(c, http.StatusConflict, "Already exists")
	case errors.Is(err, grievance.ErrTransitionNotAllowed):
		fail(c, http.StatusConflict, err.Error())
	default:
		h.log.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

// errorOrNil renders an empty error string as JSON null.
func errorOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// notFoundOr answers ErrNotFound with message and everything else through respondError.
func (h *Handler) notFoundOr(c *gin.Context, err error, message string) {
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, message)
		return
	}
	h.respondError(c, err)
}
