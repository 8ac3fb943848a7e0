package services

import (
	"context"
	"time"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// staleCallCutoff: a reference still in `calling` this long after the
// call was placed has probably lost its webhook. The call itself is
// capped at 10 minutes, so 15 leaves slack for delivery.
const staleCallCutoff = 15 * time.Minute

// ReconciliationService is the cron-driven backstop for missed webhooks.
// It polls the provider for every stale in-flight call and pushes the
// result through the same ingestion path the webhook uses.
type ReconciliationService struct {
	refRepo       repositories.ReferenceRepository
	candidateRepo repositories.CandidateRepository
	userRepo      repositories.UserRepository
	dispatcher    CallDispatcher
	outreach      *OutreachService
}

func NewReconciliationService(
	refRepo repositories.ReferenceRepository,
	candidateRepo repositories.CandidateRepository,
	userRepo repositories.UserRepository,
	dispatcher CallDispatcher,
	outreach *OutreachService,
) *ReconciliationService {
	return &ReconciliationService{
		refRepo:       refRepo,
		candidateRepo: candidateRepo,
		userRepo:      userRepo,
		dispatcher:    dispatcher,
		outreach:      outreach,
	}
}

// ReconcileStaleCalls is the cron entry point.
func (s *ReconciliationService) ReconcileStaleCalls(ctx context.Context) {
	cutoff := time.Now().Add(-staleCallCutoff)
	stale, err := s.refRepo.ListStaleCalling(ctx, cutoff)
	if err != nil {
		utils.Logger.WithError(err).Error("Stale call sweep failed to list references")
		return
	}
	if len(stale) == 0 {
		return
	}
	utils.Logger.Infof("Stale call sweep: %d reference(s) to reconcile", len(stale))

	for _, ref := range stale {
		if err := s.reconcileOne(ctx, ref); err != nil {
			utils.Logger.WithError(err).Warnf("Failed to reconcile reference %s", ref.ID)
		}
	}
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, ref *models.Reference) error {
	if ref.CallID == nil {
		// Defect row: calling with no call on record. Kick it back so the
		// next outreach pass redials.
		_, _, err := s.refRepo.TransitionAtomic(ctx, ref.ID,
			[]models.ReferenceStatusType{models.ReferenceStatusCalling},
			func(r *models.Reference) error {
				r.Status = models.ReferenceStatusFailed
				r.Notes = "Call record lost"
				outcome := models.CallOutcomeFailed
				r.LastOutcome = &outcome
				return nil
			})
		return err
	}

	candidate, err := s.candidateRepo.GetByID(ctx, ref.CandidateID)
	if err != nil {
		return err
	}
	creds, err := s.userRepo.GetCredentials(ctx, candidate.UserID)
	if err != nil {
		return err
	}

	res, err := s.dispatcher.GetCallResult(ctx, *ref.CallID, creds)
	if err != nil {
		return err
	}
	if res.Outcome == models.CallOutcomeInProgress {
		// Genuinely still on the phone; leave it for the next sweep.
		return nil
	}
	return s.outreach.HandleCallResult(ctx, res)
}
