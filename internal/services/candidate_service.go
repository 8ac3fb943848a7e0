package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// CandidateService owns candidate, job and reference CRUD with tenant
// ownership enforcement. Outreach itself lives in OutreachService.
type CandidateService struct {
	candidateRepo repositories.CandidateRepository
	jobRepo       repositories.JobRepository
	refRepo       repositories.ReferenceRepository
	userRepo      repositories.UserRepository
	auditRepo     repositories.AuditLogRepository
	phones        PhoneVerifier
}

func NewCandidateService(
	candidateRepo repositories.CandidateRepository,
	jobRepo repositories.JobRepository,
	refRepo repositories.ReferenceRepository,
	userRepo repositories.UserRepository,
	auditRepo repositories.AuditLogRepository,
	phones PhoneVerifier,
) *CandidateService {
	return &CandidateService{
		candidateRepo: candidateRepo,
		jobRepo:       jobRepo,
		refRepo:       refRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
		phones:        phones,
	}
}

// validateReferencePhone normalizes the number and, when the tenant has
// Twilio credentials, confirms it via a Lookups fetch. A lookup miss is
// a validation error; a lookup outage degrades to the local check so a
// Twilio incident never blocks data entry.
func (s *CandidateService) validateReferencePhone(ctx context.Context, userID uuid.UUID, raw string) (string, error) {
	phone := utils.FormatPhoneE164(raw)
	if !utils.IsE164(phone) {
		return "", fmt.Errorf("%w: phone number %q is not a dialable E.164 number", utils.ErrValidation, raw)
	}
	if s.phones == nil {
		return phone, nil
	}

	creds, err := s.userRepo.GetCredentials(ctx, userID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to load credentials for phone lookup, user %s", userID)
		return phone, nil
	}
	ok, err := s.phones.Verify(ctx, phone, creds)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Phone lookup failed for %s, falling back to format check", phone)
		return phone, nil
	}
	if !ok {
		return "", fmt.Errorf("%w: phone number %q failed carrier lookup", utils.ErrValidation, raw)
	}
	return phone, nil
}

func (s *CandidateService) audit(ctx context.Context, userID uuid.UUID, action, entityType, entityID string) {
	entry := &models.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to write audit log entry %s", action)
	}
}

// owned fetches a candidate and enforces ownership.
func (s *CandidateService) owned(ctx context.Context, userID, candidateID uuid.UUID) (*models.Candidate, error) {
	c, err := s.candidateRepo.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, utils.ErrAccessDenied
	}
	return c, nil
}

func (s *CandidateService) CreateCandidate(ctx context.Context, userID uuid.UUID, req *dtos.CreateCandidateRequest) (*models.Candidate, error) {
	c := &models.Candidate{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               req.Name,
		Email:              req.Email,
		Position:           req.Position,
		ResumeText:         req.ResumeText,
		ResumeFilename:     req.ResumeFilename,
		TargetRoleCategory: req.TargetRoleCategory,
		TargetRoleDetails:  req.TargetRoleDetails,
		Status:             models.CandidateStatusIntake,
	}
	if req.Phone != "" {
		c.Phone = utils.FormatPhoneE164(req.Phone)
	}
	if err := s.candidateRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "candidate.created", "candidate", c.ID.String())
	return c, nil
}

func (s *CandidateService) GetCandidate(ctx context.Context, userID, candidateID uuid.UUID) (*models.Candidate, error) {
	return s.owned(ctx, userID, candidateID)
}

func (s *CandidateService) ListCandidates(ctx context.Context, userID uuid.UUID, status *models.CandidateStatusType) ([]*models.Candidate, error) {
	return s.candidateRepo.ListByUser(ctx, userID, status)
}

func (s *CandidateService) UpdateCandidate(ctx context.Context, userID, candidateID uuid.UUID, req *dtos.UpdateCandidateRequest) (*models.Candidate, error) {
	c, err := s.owned(ctx, userID, candidateID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = utils.FormatPhoneE164(*req.Phone)
	}
	if req.Position != nil {
		c.Position = *req.Position
	}
	if req.Summary != nil {
		c.Summary = *req.Summary
	}
	if req.TargetRoleCategory != nil {
		c.TargetRoleCategory = *req.TargetRoleCategory
	}
	if req.TargetRoleDetails != nil {
		c.TargetRoleDetails = *req.TargetRoleDetails
	}
	if err := s.candidateRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ArchiveCandidate soft-removes the case. The data stays for reporting.
func (s *CandidateService) ArchiveCandidate(ctx context.Context, userID, candidateID uuid.UUID) error {
	if _, err := s.owned(ctx, userID, candidateID); err != nil {
		return err
	}
	if err := s.candidateRepo.UpdateStatus(ctx, candidateID, models.CandidateStatusArchived); err != nil {
		return err
	}
	s.audit(ctx, userID, "candidate.archived", "candidate", candidateID.String())
	return nil
}

func (s *CandidateService) CreateJob(ctx context.Context, userID, candidateID uuid.UUID, req *dtos.CreateJobRequest) (*models.Job, error) {
	if _, err := s.owned(ctx, userID, candidateID); err != nil {
		return nil, err
	}
	j := &models.Job{
		ID:               uuid.New(),
		CandidateID:      candidateID,
		Company:          req.Company,
		Title:            req.Title,
		Dates:            req.Dates,
		Responsibilities: req.Responsibilities,
		Achievements:     req.Achievements,
		Ordering:         req.Ordering,
	}
	if err := s.jobRepo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *CandidateService) ListJobs(ctx context.Context, userID, candidateID uuid.UUID) ([]*models.Job, error) {
	if _, err := s.owned(ctx, userID, candidateID); err != nil {
		return nil, err
	}
	return s.jobRepo.ListByCandidate(ctx, candidateID)
}

func (s *CandidateService) CreateReference(ctx context.Context, userID, candidateID uuid.UUID, req *dtos.CreateReferenceRequest) (*models.Reference, error) {
	if _, err := s.owned(ctx, userID, candidateID); err != nil {
		return nil, err
	}

	phone, err := s.validateReferencePhone(ctx, userID, req.Phone)
	if err != nil {
		return nil, err
	}

	ref := &models.Reference{
		ID:              uuid.New(),
		CandidateID:     candidateID,
		Name:            req.Name,
		Phone:           phone,
		Email:           req.Email,
		Relationship:    req.Relationship,
		CustomQuestions: req.CustomQuestions,
		Status:          models.ReferenceStatusPending,
	}
	if req.JobID != "" {
		jobID, err := uuid.Parse(req.JobID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid job_id", utils.ErrValidation)
		}
		job, err := s.jobRepo.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.CandidateID != candidateID {
			return nil, utils.ErrAccessDenied
		}
		ref.JobID = &jobID
	}

	if err := s.refRepo.Create(ctx, ref); err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "reference.created", "reference", ref.ID.String())
	return ref, nil
}

func (s *CandidateService) GetReference(ctx context.Context, userID, refID uuid.UUID) (*models.Reference, error) {
	ref, err := s.refRepo.GetByID(ctx, refID)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, userID, ref.CandidateID); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *CandidateService) ListReferences(ctx context.Context, userID, candidateID uuid.UUID) ([]*models.Reference, error) {
	if _, err := s.owned(ctx, userID, candidateID); err != nil {
		return nil, err
	}
	return s.refRepo.ListByCandidate(ctx, candidateID)
}

// UpdateReference edits contact details. References already on the
// phone or completed are immutable.
func (s *CandidateService) UpdateReference(ctx context.Context, userID, refID uuid.UUID, req *dtos.UpdateReferenceRequest) (*models.Reference, error) {
	ref, err := s.GetReference(ctx, userID, refID)
	if err != nil {
		return nil, err
	}
	if ref.Status == models.ReferenceStatusCalling || ref.Status == models.ReferenceStatusCompleted {
		return nil, fmt.Errorf("%w: cannot edit a reference in status %s", utils.ErrInvalidTransition, ref.Status)
	}

	// Validate up front so the retry loop never does network I/O.
	var phone string
	if req.Phone != nil {
		phone, err = s.validateReferencePhone(ctx, userID, *req.Phone)
		if err != nil {
			return nil, err
		}
	}

	if err := s.refRepo.UpdateWithRetry(ctx, refID, func(r *models.Reference) error {
		if req.Name != nil {
			r.Name = *req.Name
		}
		if req.Phone != nil {
			r.Phone = phone
		}
		if req.Email != nil {
			r.Email = *req.Email
		}
		if req.Relationship != nil {
			r.Relationship = *req.Relationship
		}
		if req.CustomQuestions != nil {
			r.CustomQuestions = *req.CustomQuestions
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s.refRepo.GetByID(ctx, refID)
}

func (s *CandidateService) DeleteReference(ctx context.Context, userID, refID uuid.UUID) error {
	ref, err := s.GetReference(ctx, userID, refID)
	if err != nil {
		return err
	}
	if ref.Status == models.ReferenceStatusCalling {
		return fmt.Errorf("%w: cannot delete a reference with a call in flight", utils.ErrInvalidTransition)
	}
	if err := s.refRepo.Delete(ctx, refID); err != nil {
		return err
	}
	s.audit(ctx, userID, "reference.deleted", "reference", refID.String())
	return nil
}
