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

// CreateClaim files a claim request for a business profile. Only the
// requester themselves may file; the claim stays invisible to the
// business it names.
func CreateClaim(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID uint   `json:"business_id"`
		Note       string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id is required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceClaimRequest, policy.ActionCreate, policy.Facts{
		RequesterUserID: p.UserID,
		BusinessID:      req.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	claim := model.ClaimRequest{
		BusinessID:      req.BusinessID,
		RequesterUserID: p.UserID,
		Status:          model.ClaimStatusPending,
		Note:            req.Note,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&claim); result.Error != nil {
		log.Error("Failed to create claim request", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "claim creation failed"})
	}

	log.Info("Claim request created",
		zap.Uint("id", claim.ID),
		zap.Uint("business_id", claim.BusinessID),
		zap.Uint("requester_user_id", claim.RequesterUserID))
	return c.JSON(http.StatusCreated, claim)
}

// GetClaim returns a claim request to its requester or admin only.
func GetClaim(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid claim ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceClaimRequest, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var claim model.ClaimRequest
	if result := database.GetDB().First(&claim, id); result.Error != nil {
		log.Error("Claim not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, claim)
}

// DecideClaim approves or rejects a claim request (admin only).
func DecideClaim(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid claim ID"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Status != model.ClaimStatusApproved && req.Status != model.ClaimStatusRejected {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be approved or rejected"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceClaimRequest, policy.ActionUpdate, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := database.GetDB().Model(&model.ClaimRequest{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": req.Status, "decided_by_user_id": p.UserID})
	if result.Error != nil {
		log.Error("Failed to decide claim", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "claim update failed"})
	}

	log.Info("Claim decided",
		zap.Uint64("id", id),
		zap.String("status", req.Status),
		zap.Uint("decided_by", p.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "claim " + req.Status})
}
