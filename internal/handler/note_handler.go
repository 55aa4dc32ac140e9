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

// CreateNote writes an internal advisor note about a consumer. Only
// members of the owning business may create notes; the consumer the note
// concerns never sees it.
func CreateNote(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	var req struct {
		BusinessID    uint   `json:"business_id"`
		SubjectUserID uint   `json:"subject_user_id"`
		Body          string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordPolicyError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.BusinessID == 0 || req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id and body are required"})
	}

	decision := enforcer.Authorize(p, policy.ResourceAdvisorNote, policy.ActionCreate, policy.Facts{
		BusinessID: req.BusinessID,
	})
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	note := model.AdvisorNote{
		BusinessID:    req.BusinessID,
		AuthorUserID:  p.UserID,
		SubjectUserID: req.SubjectUserID,
		Body:          req.Body,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&note); result.Error != nil {
		log.Error("Failed to create note", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "note creation failed"})
	}

	log.Info("Advisor note created",
		zap.Uint("id", note.ID),
		zap.Uint("business_id", note.BusinessID),
		zap.Uint("author_user_id", note.AuthorUserID))
	return c.JSON(http.StatusCreated, note)
}

// GetNote returns a note, with revisions, to business members and admin.
func GetNote(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid note ID"})
	}

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceAdvisorNote, policy.ActionRead, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var note model.AdvisorNote
	if result := database.GetDB().Preload("Revisions").First(&note, id); result.Error != nil {
		log.Error("Note not found after authorization", zap.Uint64("id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	return c.JSON(http.StatusOK, note)
}

// UpdateNote replaces a note's body, preserving the prior body as a
// revision in the same transaction.
func UpdateNote(c echo.Context) error {
	log := logger.FromEcho(c)
	p := principal.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid note ID"})
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

	_, decision := enforcer.AuthorizeEntity(p, policy.ResourceAdvisorNote, policy.ActionUpdate, uint(id))
	if !decision.Allowed {
		return respondDenied(c, decision)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var note model.AdvisorNote
	if result := tx.First(&note, id); result.Error != nil {
		tx.Rollback()
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	revision := model.AdvisorNoteRevision{
		NoteID:       note.ID,
		AuthorUserID: note.AuthorUserID,
		Body:         note.Body,
	}
	if result := tx.Create(&revision); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to record note revision", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "note update failed"})
	}

	note.Body = req.Body
	note.AuthorUserID = p.UserID
	if result := tx.Save(&note); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to update note", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "note update failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction commit failed"})
	}

	log.Info("Advisor note updated", zap.Uint("id", note.ID), zap.Uint("actor_user_id", p.UserID))
	return c.JSON(http.StatusOK, note)
}
