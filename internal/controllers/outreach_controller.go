package controllers

import (
	"fmt"
	"net/http"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type OutreachController struct {
	outreachService  *services.OutreachService
	candidateService *services.CandidateService
}

func NewOutreachController(os *services.OutreachService, cs *services.CandidateService) *OutreachController {
	return &OutreachController{outreachService: os, candidateService: cs}
}

// POST /api/v1/candidates/{candidateID}/start-outreach
func (c *OutreachController) StartOutreachHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "StartOutreachHandler")

	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	candidateID, err := pathUUID(r, "candidateID")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	dispatched, err := c.outreachService.StartOutreach(r.Context(), userID, candidateID)
	if err != nil {
		logger.WithError(err).Error("Outreach failed to start")
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.StartOutreachResponse{
		Dispatched: dispatched,
		Message:    fmt.Sprintf("%d call(s) dispatched", dispatched),
	})
}

// GET /api/v1/references/{referenceID}/call-status
func (c *OutreachController) CallStatusHandler(w http.ResponseWriter, r *http.Request) {
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

	resp := map[string]any{
		"status":        ref.Status,
		"call_attempts": ref.CallAttempts,
		"sms_sent":      ref.SMSSent,
	}
	if ref.LastOutcome != nil {
		resp["last_outcome"] = *ref.LastOutcome
	}
	if ref.CallPlacedAt != nil {
		resp["call_placed_at"] = ref.CallPlacedAt
	}
	if ref.Score != nil {
		resp["score"] = *ref.Score
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
