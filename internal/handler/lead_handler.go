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

// CreateLead creates a lead from the signed-in consumer to a business.
// The consumer id on the row is always the actor's own: impersonation is
// denied by the policy table.
func CreateLead(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID uint   `json:"business_id"`
		ListingID  *uint  `json:"listing_id,omitempty"`
		Message    string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse lead request", zap.Error(err))
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id is required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceLead, policy.ActionCreate, policy.Facts{
		ConsumerUserID: p.UserID,
		BusinessID:     req.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	lead := model.Lead{
		ConsumerUserID: p.UserID,
		BusinessID:     req.BusinessID,
		ListingID:      req.ListingID,
		Status:         model.LeadStatusNew,
		Message:        req.Message,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&lead); result.Error != nil {
		log.Error("Failed to create lead", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lead creation failed"})
	}

	log.Info("Lead created",
		zap.Uint("id", lead.ID),
		zap.Uint("consumer_user_id", lead.ConsumerUserID),
		zap.Uint("business_id", lead.BusinessID))
	return c.JSON(http.StatusCreated, lead)
}

// GetLead returns a lead to its owning consumer, members of the receiving
// business, or admin.
func GetLead(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lead ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceLead, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var lead model.Lead
	if result := database.GetDB().First(&lead, id); result.Error != nil {
		log.Error("Lead not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, lead)
}

// ListBusinessLeads lists a business's leads for its members and admin.
// Other principals get an empty denial, not a hint the business has leads.
func ListBusinessLeads(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	businessID, err := strconv.ParseUint(c.Param("business_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid business ID"})
	}

	decision := enforcer.Authorize(p, policy.ResourceLead, policy.ActionUpdate, policy.Facts{BusinessID: uint(businessID)})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var leads []model.Lead
	if result := database.GetDB().Where("business_id = ?", businessID).Order("created_at DESC").Find(&leads); result.Error != nil {
		log.Error("Failed to list leads", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list leads"})
	}

	return c.JSON(http.StatusOK, leads)
}

// UpdateLeadStatus lets business members work a lead through its statuses.
func UpdateLeadStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lead ID"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	switch req.Status {
	case model.LeadStatusNew, model.LeadStatusContacted, model.LeadStatusConverted, model.LeadStatusClosed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown lead status"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceLead, policy.ActionUpdate, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := database.GetDB().Model(&model.Lead{}).Where("id = ?", id).Update("status", req.Status)
	if result.Error != nil {
		log.Error("Failed to update lead status", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lead update failed"})
	}

	log.Info("Lead status updated",
		zap.Uint64("id", id),
		zap.String("status", req.Status),
		zap.Uint("actor_user_id", p.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "lead updated", "status": req.Status})
}
