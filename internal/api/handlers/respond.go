package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/models"
)

var errForbiddenTarget = apperr.Forbidden("forbidden_target", "only admins may act on other users")

// respondError renders err as {"error", "code"}. Internal failures are
// logged and never expose their cause.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	code := apperr.CodeOf(err)
	if kind == apperr.KindInternal {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"user_id", auth.UserIDFrom(c),
			"error", err,
		)
	} else {
		slog.Debug("request rejected", "path", c.FullPath(), "code", code)
	}
	c.JSON(kind.HTTPStatus(), gin.H{"error": apperr.Public(err), "code": code})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
}

// targetUser resolves whose data a request acts on: the caller by default,
// or requested when the caller is an admin.
func targetUser(c *gin.Context, requested *uuid.UUID) (uuid.UUID, error) {
	caller := auth.UserIDFrom(c)
	if requested == nil || *requested == caller {
		return caller, nil
	}
	if auth.RoleFrom(c) != models.RoleAdmin {
		return uuid.Nil, errForbiddenTarget
	}
	return *requested, nil
}

// queryUser reads an optional ?user_id= and resolves it with targetUser.
func queryUser(c *gin.Context) (uuid.UUID, error) {
	raw := c.Query("user_id")
	if raw == "" {
		return targetUser(c, nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid("invalid user_id")
	}
	return targetUser(c, &id)
}
