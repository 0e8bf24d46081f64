package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school-secretary/internal/digest"
	"school-secretary/internal/domain"
	"school-secretary/internal/enroll"
	"school-secretary/internal/logging"
	"school-secretary/internal/sync"
)

// CourseSyncer syncs one course into one user's calendar.
type CourseSyncer interface {
	SyncCourse(ctx context.Context, u *domain.DigestUser, courseID int64) (sync.Result, error)
}

// DigestTrigger runs the digest for every enabled user.
type DigestTrigger interface {
	Run(ctx context.Context) (digest.Summary, error)
}

type Handler struct {
	Enroll *enroll.Service
	Sync   CourseSyncer
	Digest DigestTrigger
	Logger *zap.Logger
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type signupRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"google_refresh_token"`
	TimeZone     string `json:"timezone"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	u, err := h.Enroll.Signup(c.Request.Context(), req.Email, domain.RefreshToken(req.RefreshToken), req.TimeZone)
	if err != nil {
		h.fail(c, "signup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user_id": u.ID})
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	err := h.Enroll.Unsubscribe(c.Request.Context(), c.Query("id"))
	switch {
	case err == nil:
		c.String(http.StatusOK, "You're unsubscribed. You won't get any more digests.")
	case isValidation(err):
		c.String(http.StatusBadRequest, "Invalid unsubscribe link.")
	case errors.Is(err, enroll.ErrNotFound):
		c.String(http.StatusNotFound, "Unknown unsubscribe link.")
	default:
		logging.OrNop(h.Logger).Error("unsubscribe failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func (h *Handler) Settings(c *gin.Context) {
	u, err := h.Enroll.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": u.Email, "enabled": u.Enabled, "timezone": u.TimeZone})
}

func (h *Handler) Enable(c *gin.Context)  { h.setEnabled(c, true) }
func (h *Handler) Disable(c *gin.Context) { h.setEnabled(c, false) }

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	u, err := h.Enroll.SetEnabled(c.Request.Context(), c.Param("id"), enabled)
	if err != nil {
		h.fail(c, "settings toggle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": u.Email, "enabled": u.Enabled})
}

type syncRequest struct {
	UserID   string `json:"user_id"`
	CourseID int64  `json:"course_id"`
}

func (h *Handler) SyncCourse(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	u, err := h.Enroll.Status(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, "sync", err)
		return
	}

	res, err := h.Sync.SyncCourse(c.Request.Context(), &u, req.CourseID)
	if err != nil {
		h.fail(c, "sync", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RunDigest(c *gin.Context) {
	sum, err := h.Digest.Run(c.Request.Context())
	if err != nil {
		h.fail(c, "digest run", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// fail maps the error taxonomy onto status codes.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthError
		ferr *domain.FetchError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, enroll.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.As(err, &aerr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": aerr.Error()})
	case errors.As(err, &ferr):
		c.JSON(http.StatusBadGateway, gin.H{"error": ferr.Error()})
	default:
		logging.OrNop(h.Logger).Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func isValidation(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}
