package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type SettingsController struct {
	settingsService *services.SettingsService
	validate        *validator.Validate
}

func NewSettingsController(s *services.SettingsService) *SettingsController {
	return &SettingsController{
		settingsService: s,
		validate:        validator.New(),
	}
}

// GET /api/v1/settings
func (c *SettingsController) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	settings, err := c.settingsService.GetSettings(r.Context(), userID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, settings)
}

// PATCH /api/v1/settings
func (c *SettingsController) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "UpdateSettingsHandler")

	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	settings, err := c.settingsService.UpdateSettings(r.Context(), userID, &req)
	if err != nil {
		logger.WithError(err).Error("Settings update failed")
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, settings)
}
