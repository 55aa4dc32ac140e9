package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"trust-service/internal/model"
	"trust-service/internal/policy"
	"trust-service/internal/principal"
	"trust-service/pkg/database"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

// GetUser returns a user record to themselves or admin.
func GetUser(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceUser, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, id); result.Error != nil {
		log.Error("User not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, user)
}

// ChangeRole changes another user's role. Admin only, and never the
// admin's own row: self-role-change is denied outright, so there is no
// path for any principal to elevate itself.
func ChangeRole(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	switch req.Role {
	case model.RoleConsumer, model.RoleAdvisor, model.RoleAdmin:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}

	decision := enforcer.Authorize(p, policy.ResourceUser, policy.ActionUpdate, policy.Facts{
		TargetUserID: uint(id),
		RoleChange:   true,
	})
	if !decision.Allowed {
		log.Warn("Role change denied",
			zap.Uint("actor_user_id", p.UserID),
			zap.Uint64("target_user_id", id),
			zap.String("reason", decision.Reason))
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := database.GetDB().Model(&model.User{}).Where("id = ?", id).Update("role", req.Role)
	if result.Error != nil {
		log.Error("Failed to change role", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role change failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	log.Info("User role changed",
		zap.Uint64("target_user_id", id),
		zap.String("role", req.Role),
		zap.Uint("changed_by", p.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "role updated", "role": req.Role})
}
