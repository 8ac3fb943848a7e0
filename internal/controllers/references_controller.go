package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type ReferencesController struct {
	candidateService *services.CandidateService
	outreachService  *services.OutreachService
	validate         *validator.Validate
}

func NewReferencesController(cs *services.CandidateService, os *services.OutreachService) *ReferencesController {
	return &ReferencesController{
		candidateService: cs,
		outreachService:  os,
		validate:         validator.New(),
	}
}

// GET /api/v1/references/{referenceID}
func (c *ReferencesController) GetReferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	ref, err := c.candidateService.GetReference(r.Context(), userID, refID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ref)
}

// PATCH /api/v1/references/{referenceID}
func (c *ReferencesController) UpdateReferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.UpdateReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	ref, err := c.candidateService.UpdateReference(r.Context(), userID, refID, &req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ref)
}

// DELETE /api/v1/references/{referenceID}
func (c *ReferencesController) DeleteReferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	if err := c.candidateService.DeleteReference(r.Context(), userID, refID); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/references/{referenceID}/schedule
func (c *ReferencesController) ScheduleReferenceHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "ScheduleReferenceHandler")

	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.ScheduleReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	when, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		utils.HandleAppError(w, fmt.Errorf("%w: scheduled_time must be RFC 3339", utils.ErrValidation))
		return
	}

	ref, err := c.outreachService.ScheduleReference(r.Context(), userID, refID, when, req.Timezone)
	if err != nil {
		logger.WithError(err).Warn("Schedule rejected")
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ref)
}

// POST /api/v1/references/{referenceID}/retry
func (c *ReferencesController) RetryReferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	ref, err := c.outreachService.RetryReference(r.Context(), userID, refID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ref)
}

// POST /api/v1/references/{referenceID}/send-sms
func (c *ReferencesController) SendFollowUpSMSHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	refID, err := pathUUID(r, "referenceID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	if err := c.outreachService.SendFollowUpSMS(r.Context(), userID, refID); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "sms_sent"})
}
