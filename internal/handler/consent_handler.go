package handler

import (
	"errors"
	"net/http"
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

// RecordConsent records a self-attested trust consent acknowledging a
// disclosure. The consent row and its audit event commit atomically.
func RecordConsent(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		ListingID    uint   `json:"listing_id"`
		DisclosureID uint   `json:"disclosure_id"`
		ConsentType  string `json:"consent_type"`
		Granted      bool   `json:"granted"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ListingID == 0 || req.DisclosureID == 0 || req.ConsentType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing_id, disclosure_id and consent_type are required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceTrustConsent, policy.ActionCreate, policy.Facts{
		OwnerUserID: p.UserID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	var consent model.TrustConsent
	event, err := enforcer.MutateWithAudit(audit.ActionConsentRecorded, "trust_consent", p.UserID,
		func(tx *gorm.DB) (uint, map[string]interface{}, error) {
			var disclosure model.TrustDisclosure
			if result := tx.First(&disclosure, req.DisclosureID); result.Error != nil {
				return 0, nil, result.Error
			}
			if disclosure.ListingID != req.ListingID {
				return 0, nil, errors.New("disclosure does not belong to listing")
			}

			consent = model.TrustConsent{
				UserID:       p.UserID,
				ListingID:    req.ListingID,
				DisclosureID: req.DisclosureID,
				ConsentType:  req.ConsentType,
				Granted:      req.Granted,
			}
			if result := tx.Create(&consent); result.Error != nil {
				return 0, nil, result.Error
			}
			return consent.ID, map[string]interface{}{
				"listing_id":    req.ListingID,
				"disclosure_id": req.DisclosureID,
				"granted":       req.Granted,
			}, nil
		})
	if err != nil {
		if errors.Is(err, audit.ErrWriteFailure) {
			prometheus.RecordPolicyError("audit_write_failed")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		log.Error("Failed to record consent", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "consent recording failed"})
	}

	log.Info("Trust consent recorded",
		zap.Uint("id", consent.ID),
		zap.Uint("listing_id", consent.ListingID),
		zap.Uint("disclosure_id", consent.DisclosureID),
		zap.String("audit_event_id", event.EventID))
	return c.JSON(http.StatusCreated, consent)
}

// ListMyConsents returns the signed-in user's own consent records.
func ListMyConsents(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	decision := enforcer.Authorize(p, policy.ResourceTrustConsent, policy.ActionRead, policy.Facts{
		OwnerUserID: p.UserID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var consents []model.TrustConsent
	if result := database.GetDB().Where("user_id = ?", p.UserID).Order("created_at DESC").Find(&consents); result.Error != nil {
		log.Error("Failed to list consents", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list consents"})
	}

	return c.JSON(http.StatusOK, consents)
}
