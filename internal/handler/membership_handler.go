package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"trust-service/internal/model"
	"trust-service/internal/principal"
	"trust-service/pkg/database"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

// InviteMember invites a user into a business. Only existing active
// members with an owner/admin membership role, or a platform admin, may
// invite. The invitee gains no visibility until the invitation is
// accepted into active status.
func InviteMember(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID uint   `json:"business_id"`
		UserEmail  string `json:"user_email"`
		Role       string `json:"role,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 || req.UserEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id and user_email are required"})
	}
	if req.Role == "" {
		req.Role = "member"
	}

	if !p.IsAdmin() {
		// Verify the requesting user may manage members of this business.
		var membership model.BusinessMembership
		result := database.GetDB().
			Where("user_id = ? AND business_id = ? AND status = ? AND role IN ('owner', 'admin')",
				p.UserID, req.BusinessID, model.MembershipActive).
			First(&membership)
		if result.Error != nil {
			log.Warn("Unauthorized attempt to invite member",
				zap.Uint("requesting_user_id", p.UserID),
				zap.Uint("business_id", req.BusinessID))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
		}
	}

	var user model.User
	if result := database.GetDB().Where("email = ?", req.UserEmail).First(&user); result.Error != nil {
		log.Error("User not found", zap.String("email", req.UserEmail))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	// Re-invite reuses the existing row rather than stacking duplicates.
	var existing model.BusinessMembership
	result := database.GetDB().Where("user_id = ? AND business_id = ?", user.ID, req.BusinessID).First(&existing)
	if result.Error == nil {
		if existing.Status == model.MembershipActive {
			return c.JSON(http.StatusConflict, echo.Map{"error": "user is already a member"})
		}
		existing.Status = model.MembershipInvited
		existing.Role = req.Role
		if err := database.GetDB().Save(&existing).Error; err != nil {
			log.Error("Failed to update membership", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invitation failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "user re-invited", "membership": existing})
	}

	membership := model.BusinessMembership{
		UserID:     user.ID,
		BusinessID: req.BusinessID,
		Role:       req.Role,
		Status:     model.MembershipInvited,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&membership).Error; err != nil {
		log.Error("Failed to create membership", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invitation failed"})
	}

	log.Info("Member invited",
		zap.Uint("business_id", req.BusinessID),
		zap.String("user_email", req.UserEmail),
		zap.String("role", req.Role))
	return c.JSON(http.StatusCreated, echo.Map{"message": "user invited", "membership": membership})
}

// AcceptInvitation activates the signed-in user's own invited membership.
func AcceptInvitation(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership ID"})
	}

	var membership model.BusinessMembership
	if result := database.GetDB().First(&membership, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if membership.UserID != p.UserID {
		// Someone else's invitation looks like it does not exist.
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if membership.Status != model.MembershipInvited {
		return c.JSON(http.StatusConflict, echo.Map{"error": "membership is not pending"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	membership.Status = model.MembershipActive
	if err := database.GetDB().Save(&membership).Error; err != nil {
		log.Error("Failed to activate membership", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activation failed"})
	}

	log.Info("Membership activated",
		zap.Uint("membership_id", membership.ID),
		zap.Uint("business_id", membership.BusinessID),
		zap.Uint("user_id", membership.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "membership active", "membership": membership})
}

// RevokeMembership revokes a member's access to a business. Owner/admin
// members of the business or a platform admin only. Revocation takes
// effect on the next principal resolution.
func RevokeMembership(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership ID"})
	}

	var membership model.BusinessMembership
	if result := database.GetDB().First(&membership, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	if !p.IsAdmin() {
		var requester model.BusinessMembership
		result := database.GetDB().
			Where("user_id = ? AND business_id = ? AND status = ? AND role IN ('owner', 'admin')",
				p.UserID, membership.BusinessID, model.MembershipActive).
			First(&requester)
		if result.Error != nil {
			log.Warn("Unauthorized attempt to revoke membership",
				zap.Uint("requesting_user_id", p.UserID),
				zap.Uint("business_id", membership.BusinessID))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	membership.Status = model.MembershipRevoked
	if err := database.GetDB().Save(&membership).Error; err != nil {
		log.Error("Failed to revoke membership", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revocation failed"})
	}

	log.Info("Membership revoked",
		zap.Uint("membership_id", membership.ID),
		zap.Uint("business_id", membership.BusinessID),
		zap.Uint("user_id", membership.UserID),
		zap.Uint("revoked_by", p.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "membership revoked"})
}
