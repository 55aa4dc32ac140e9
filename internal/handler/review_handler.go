package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trust-service/internal/audit"
	"trust-service/internal/model"
	"trust-service/internal/policy"
	"trust-service/internal/principal"
	"trust-service/pkg/database"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

// CreateReview creates a review by the owning consumer for a lead they
// created. Reviews start pending and become public only after moderation.
func CreateReview(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		LeadID  uint   `json:"lead_id"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.LeadID == 0 || req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lead_id and a rating between 1 and 5 are required"})
	}

	// The lead anchors the review's ownership facts.
	leadFacts, leadDecision := enforcer.AuthorizeEntity(p, policy.ResourceLead, policy.ActionRead, req.LeadID)
	if !leadDecision.Allowed {
		return respondDenied(c, leadDecision)
	}

	decision := enforcer.Authorize(p, policy.ResourceReview, policy.ActionCreate, policy.Facts{
		ConsumerUserID: leadFacts.ConsumerUserID,
		BusinessID:     leadFacts.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var lead model.Lead
	if result := database.GetDB().First(&lead, req.LeadID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	var listingID uint
	if lead.ListingID != nil {
		listingID = *lead.ListingID
	}

	review := model.Review{
		LeadID:         lead.ID,
		ConsumerUserID: lead.ConsumerUserID,
		BusinessID:     lead.BusinessID,
		ListingID:      listingID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Status:         model.ReviewStatusPending,
	}

	if result := database.GetDB().Create(&review); result.Error != nil {
		log.Error("Failed to create review", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "review creation failed"})
	}

	log.Info("Review created",
		zap.Uint("id", review.ID),
		zap.Uint("lead_id", review.LeadID),
		zap.Int("rating", review.Rating))
	return c.JSON(http.StatusCreated, review)
}

// GetReview returns a review: published ones to anyone including
// anonymous, unpublished ones to the owning consumer and admin.
func GetReview(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceReview, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var review model.Review
	if result := database.GetDB().First(&review, id); result.Error != nil {
		log.Error("Review not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, review)
}

// ModerateReview publishes or rejects a review (admin only).
func ModerateReview(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review ID"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Status != model.ReviewStatusPublished && req.Status != model.ReviewStatusRejected {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be published or rejected"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceReview, policy.ActionUpdate, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}
	if !p.IsAdmin() {
		// Pre-publication consumer edits go through a different route;
		// status changes are moderation and stay admin-only.
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == model.ReviewStatusPublished {
		now := time.Now()
		updates["published_at"] = now
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := database.GetDB().Model(&model.Review{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Error("Failed to moderate review", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "review update failed"})
	}

	log.Info("Review moderated",
		zap.Uint64("id", id),
		zap.String("status", req.Status),
		zap.Uint("moderator_user_id", p.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "review " + req.Status})
}

// CreateDispute files a dispute against a review. The insert and its
// mandated audit event commit together or not at all.
func CreateDispute(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	reviewFacts, reviewDecision := enforcer.AuthorizeEntity(p, policy.ResourceReview, policy.ActionRead, uint(reviewID))
	if !reviewDecision.Allowed {
		return respondDenied(c, reviewDecision)
	}

	decision := enforcer.Authorize(p, policy.ResourceReviewDispute, policy.ActionCreate, policy.Facts{
		RequesterUserID: p.UserID,
		BusinessID:      reviewFacts.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	var dispute model.ReviewDispute
	event, err := enforcer.MutateWithAudit(audit.ActionReviewDisputeCreated, "review_dispute", p.UserID,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			dispute = model.ReviewDispute{
				ReviewID:        uint(reviewID),
				RequesterUserID: p.UserID,
				BusinessID:      reviewFacts.BusinessID,
				Reason:          req.Reason,
				Status:          model.DisputeStatusOpen,
			}
			if result := tx.Create(&dispute); result.Error != nil {
				return 0, nil, result.Error
			}
			return dispute.ID, map[string]interface{}{"review_id": reviewID}, nil
		})
	if err != nil {
		if errors.Is(err, audit.ErrWriteFailure) {
			prometheus.RecordPolicyError("audit_write_failed")
		}
		log.Error("Failed to create dispute", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "dispute creation failed"})
	}

	log.Info("Review dispute created",
		zap.Uint("id", dispute.ID),
		zap.Uint64("review_id", reviewID),
		zap.String("audit_event_id", event.EventID))
	return c.JSON(http.StatusCreated, dispute)
}

// CreateReply posts a business reply to a review, with its mandated audit
// event in the same transaction.
func CreateReply(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review ID"})
	}

	var req struct {
		Body    string `json:"body"`
		Publish bool   `json:"publish"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is required"})
	}

	reviewFacts, reviewDecision := enforcer.AuthorizeEntity(p, policy.ResourceReview, policy.ActionRead, uint(reviewID))
	if !reviewDecision.Allowed {
		return respondDenied(c, reviewDecision)
	}

	decision := enforcer.Authorize(p, policy.ResourceReviewReply, policy.ActionCreate, policy.Facts{
		BusinessID: reviewFacts.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	var reply model.ReviewReply
	event, err := enforcer.MutateWithAudit(audit.ActionReviewReplyCreated, "review_reply", p.UserID,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			reply = model.ReviewReply{
				ReviewID:        uint(reviewID),
				BusinessID:      reviewFacts.BusinessID,
				ResponderUserID: p.UserID,
				Body:            req.Body,
				Status:          model.ReplyStatusDraft,
			}
			if req.Publish {
				now := time.Now()
				reply.Status = model.ReplyStatusPublished
				reply.PublishedAt = &now
			}
			if result := tx.Create(&reply); result.Error != nil {
				return 0, nil, result.Error
			}
			return reply.ID, map[string]interface{}{"review_id": reviewID, "published": req.Publish}, nil
		})
	if err != nil {
		if errors.Is(err, audit.ErrWriteFailure) {
			prometheus.RecordPolicyError("audit_write_failed")
		}
		log.Error("Failed to create reply", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reply creation failed"})
	}

	log.Info("Review reply created",
		zap.Uint("id", reply.ID),
		zap.Uint64("review_id", reviewID),
		zap.String("audit_event_id", event.EventID))
	return c.JSON(http.StatusCreated, reply)
}

// GetReply returns a reply: published to anyone, drafts to the owning
// business and admin.
func GetReply(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("reply_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reply ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceReviewReply, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var reply model.ReviewReply
	if result := database.GetDB().First(&reply, id); result.Error != nil {
		log.Error("Reply not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, reply)
}

// GetDispute returns a dispute to its requester, the disputed business,
// or admin.
func GetDispute(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("dispute_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid dispute ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceReviewDispute, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var dispute model.ReviewDispute
	if result := database.GetDB().First(&dispute, id); result.Error != nil {
		log.Error("Dispute not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, dispute)
}
