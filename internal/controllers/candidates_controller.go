package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type CandidatesController struct {
	candidateService *services.CandidateService
	validate         *validator.Validate
}

func NewCandidatesController(s *services.CandidateService) *CandidatesController {
	return &CandidatesController{
		candidateService: s,
		validate:         validator.New(),
	}
}

// POST /api/v1/candidates
func (c *CandidatesController) CreateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "CreateCandidateHandler")

	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.CreateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	candidate, err := c.candidateService.CreateCandidate(r.Context(), userID, &req)
	if err != nil {
		logger.WithError(err).Error("Service call failed")
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("candidateID", candidate.ID).Info("Candidate created")
	utils.RespondWithJSON(w, http.StatusCreated, candidate)
}

// GET /api/v1/candidates
func (c *CandidatesController) ListCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var status *models.CandidateStatusType
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.CandidateStatusType(raw)
		status = &s
	}

	candidates, err := c.candidateService.ListCandidates(r.Context(), userID, status)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, candidates)
}

// GET /api/v1/candidates/{candidateID}
func (c *CandidatesController) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
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

	candidate, err := c.candidateService.GetCandidate(r.Context(), userID, candidateID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, candidate)
}

// PATCH /api/v1/candidates/{candidateID}
func (c *CandidatesController) UpdateCandidateHandler(w http.ResponseWriter, r *http.Request) {
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

	var req dtos.UpdateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	candidate, err := c.candidateService.UpdateCandidate(r.Context(), userID, candidateID, &req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, candidate)
}

// DELETE /api/v1/candidates/{candidateID}
func (c *CandidatesController) ArchiveCandidateHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := c.candidateService.ArchiveCandidate(r.Context(), userID, candidateID); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// POST /api/v1/candidates/{candidateID}/jobs
func (c *CandidatesController) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
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

	var req dtos.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	job, err := c.candidateService.CreateJob(r.Context(), userID, candidateID, &req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, job)
}

// GET /api/v1/candidates/{candidateID}/jobs
func (c *CandidatesController) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
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

	jobs, err := c.candidateService.ListJobs(r.Context(), userID, candidateID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, jobs)
}

// POST /api/v1/candidates/{candidateID}/references
func (c *CandidatesController) CreateReferenceHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "CreateReferenceHandler")

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

	var req dtos.CreateReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	ref, err := c.candidateService.CreateReference(r.Context(), userID, candidateID, &req)
	if err != nil {
		logger.WithError(err).Error("Service call failed")
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("referenceID", ref.ID).Info("Reference created")
	utils.RespondWithJSON(w, http.StatusCreated, ref)
}

// GET /api/v1/candidates/{candidateID}/references
func (c *CandidatesController) ListReferencesHandler(w http.ResponseWriter, r *http.Request) {
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

	refs, err := c.candidateService.ListReferences(r.Context(), userID, candidateID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, refs)
}
