package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"trust-service/internal/badge"
	"trust-service/internal/model"
	"trust-service/internal/policy"
	"trust-service/internal/principal"
	"trust-service/pkg/database"
	"trust-service/pkg/logger"
	"trust-service/prometheus"
)

// CreateListing creates a listing for a business the principal belongs to.
// Gated fields always start at their floor regardless of the request body.
func CreateListing(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID uint   `json:"business_id"`
		Headline   string `json:"headline"`
		Summary    string `json:"summary"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse listing request", zap.Error(err))
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 || req.Headline == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id and headline are required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceListing, policy.ActionCreate, policy.Facts{BusinessID: req.BusinessID})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	listing := model.Listing{
		BusinessID:        req.BusinessID,
		Headline:          req.Headline,
		Summary:           req.Summary,
		IsActive:          true,
		Featured:          false,
		VerificationLevel: model.VerificationNone,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&listing); result.Error != nil {
		log.Error("Failed to create listing", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing creation failed"})
	}

	log.Info("Listing created",
		zap.Uint("id", listing.ID),
		zap.Uint("business_id", listing.BusinessID))
	return c.JSON(http.StatusCreated, listing)
}

// GetListing returns a listing. Anonymous visitors see only the public
// view of an active listing; the owning business and admin see the full
// record, including inactive listings.
func GetListing(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing ID"})
	}

	facts, decision := enforcer.AuthorizeEntity(p, policy.ResourceListing, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var listing model.Listing
	if result := database.GetDB().First(&listing, id); result.Error != nil {
		log.Error("Listing not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	if p.IsAdmin() || p.IsMemberOf(facts.BusinessID) {
		return c.JSON(http.StatusOK, listing)
	}
	return c.JSON(http.StatusOK, listing.PublicView())
}

// UpdateBadge routes a gated field change through the badge gate. The
// request names exactly one field and its new value; the transition is
// rejected when no active disclosure of the matching kind exists.
func UpdateBadge(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing ID"})
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse badge request", zap.Error(err))
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	listing, err := enforcer.ApplyBadgeTransition(p, uint(id), badge.Field(req.Field), req.Value)
	if err != nil {
		switch {
		case isDenied(err):
			return respondDeniedErr(c, err)
		case isGateViolation(err):
			log.Warn("Badge transition rejected",
				zap.Uint64("listing_id", id),
				zap.String("field", req.Field),
				zap.String("value", req.Value))
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case isBadValue(err):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			log.Error("Badge transition failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "badge transition failed"})
		}
	}

	return c.JSON(http.StatusOK, listing)
}

// ActivateDisclosure activates a trust disclosure for a listing (admin).
func ActivateDisclosure(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing ID"})
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	disclosure, err := enforcer.ActivateDisclosure(p, uint(id), req.Kind)
	if err != nil {
		if isDenied(err) {
			return respondDeniedErr(c, err)
		}
		if isBadValue(err) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		log.Error("Failed to activate disclosure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "disclosure activation failed"})
	}

	log.Info("Disclosure activated",
		zap.Uint("listing_id", disclosure.ListingID),
		zap.String("kind", disclosure.Kind),
		zap.Uint("approved_by", p.UserID))
	return c.JSON(http.StatusCreated, disclosure)
}

// DeactivateDisclosure marks a disclosure inactive (admin). Previously
// elevated badges keep their state; further elevation is blocked.
func DeactivateDisclosure(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("disclosure_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid disclosure ID"})
	}

	if err := enforcer.DeactivateDisclosure(p, uint(id)); err != nil {
		if isDenied(err) {
			return respondDeniedErr(c, err)
		}
		log.Error("Failed to deactivate disclosure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "disclosure deactivation failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "disclosure deactivated"})
}
