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

// CreateConversation opens a conversation between the signed-in consumer
// and a business, optionally linked to a lead.
func CreateConversation(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID uint  `json:"business_id"`
		LeadID     *uint `json:"lead_id,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id is required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceConversation, policy.ActionCreate, policy.Facts{
		ConsumerUserID: p.UserID,
		BusinessID:     req.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	conv := model.Conversation{
		ConsumerUserID: p.UserID,
		BusinessID:     req.BusinessID,
		LeadID:         req.LeadID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&conv); result.Error != nil {
		log.Error("Failed to create conversation", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "conversation creation failed"})
	}

	log.Info("Conversation created",
		zap.Uint("id", conv.ID),
		zap.Uint("business_id", conv.BusinessID))
	return c.JSON(http.StatusCreated, conv)
}

// GetConversation returns a conversation with its messages to either
// owning party or admin.
func GetConversation(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceConversation, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var conv model.Conversation
	if result := database.GetDB().Preload("Messages").First(&conv, id); result.Error != nil {
		log.Error("Conversation not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, conv)
}

// AppendMessage adds a message to a conversation the principal can read.
func AppendMessage(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation ID"})
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is required"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceConversation, policy.ActionUpdate, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	message := model.Message{
		ConversationID: uint(id),
		SenderUserID:   p.UserID,
		Body:           req.Body,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&message); result.Error != nil {
		log.Error("Failed to append message", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "message creation failed"})
	}

	return c.JSON(http.StatusCreated, message)
}
