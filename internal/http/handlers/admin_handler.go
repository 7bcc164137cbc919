// Read-model endpoints consumed by the external dashboard UI.
//
// Everything here is JSON over GET (plus two small mutations: marking
// feedback read and resetting a usage counter), guarded by a static bearer
// token. The dashboard itself renders elsewhere; this is its interface.
package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// AdminHandler serves the read model.
type AdminHandler struct {
	DB    *gorm.DB
	Token string
}

// Auth returns a middleware enforcing the bearer token in constant time.
// With no token configured the read model is disabled entirely.
func (h *AdminHandler) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Token == "" {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "read model disabled")
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
			return
		}
		c.Next()
	}
}

// GetStats returns the fleet overview plus usage aggregates.
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	fleet, err := repo.GetFleetStats(ctx, h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	usage, err := repo.GetUsageStats(ctx, h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"fleet": fleet, "usage": usage})
}

// ListConnections returns every active connection.
func (h *AdminHandler) ListConnections(c *gin.Context) {
	conns, err := repo.ListAllActive(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"connections": conns})
}

// ListSubscriptions returns every subscription row.
func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	subs, err := repo.ListSubscriptions(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"subscriptions": subs})
}

// ListFeedback returns feedback rows, optionally only unread
// (?unread=true).
func (h *AdminHandler) ListFeedback(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true" || c.Query("unread") == "1"
	rows, err := repo.ListFeedback(c.Request.Context(), h.DB, unreadOnly)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"feedback": rows})
}

// MarkFeedbackRead flips one feedback row to read.
func (h *AdminHandler) MarkFeedbackRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "feedback id must be numeric")
		return
	}
	if err := repo.MarkFeedbackRead(c.Request.Context(), h.DB, id); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetUsage zeroes a manager's usage counter and clears the block flag.
func (h *AdminHandler) ResetUsage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("manager_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "manager id must be numeric")
		return
	}
	if err := repo.ResetUsage(c.Request.Context(), h.DB, id); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
