package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// OutreachService drives the per-reference outreach state machine:
// scheduling, call dispatch, result ingestion (webhook or poller), SMS
// fallback and retries. All status changes funnel through
// ReferenceRepository.TransitionAtomic so concurrent result deliveries
// resolve to exactly one accepted transition.
type OutreachService struct {
	refRepo       repositories.ReferenceRepository
	candidateRepo repositories.CandidateRepository
	jobRepo       repositories.JobRepository
	userRepo      repositories.UserRepository
	auditRepo     repositories.AuditLogRepository

	dispatcher CallDispatcher
	sms        SMSSender
	analyzer   TranscriptAnalyzer
	replies    ReplyParser
	notifier   *NotificationService
}

func NewOutreachService(
	refRepo repositories.ReferenceRepository,
	candidateRepo repositories.CandidateRepository,
	jobRepo repositories.JobRepository,
	userRepo repositories.UserRepository,
	auditRepo repositories.AuditLogRepository,
	dispatcher CallDispatcher,
	sms SMSSender,
	analyzer TranscriptAnalyzer,
	replies ReplyParser,
	notifier *NotificationService,
) *OutreachService {
	return &OutreachService{
		refRepo:       refRepo,
		candidateRepo: candidateRepo,
		jobRepo:       jobRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
		dispatcher:    dispatcher,
		sms:           sms,
		analyzer:      analyzer,
		replies:       replies,
		notifier:      notifier,
	}
}

func (s *OutreachService) audit(ctx context.Context, userID uuid.UUID, action, entityType, entityID string) {
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

// ownedReference loads a reference plus its candidate and verifies
// ownership.
func (s *OutreachService) ownedReference(ctx context.Context, userID, refID uuid.UUID) (*models.Reference, *models.Candidate, error) {
	ref, err := s.refRepo.GetByID(ctx, refID)
	if err != nil {
		return nil, nil, err
	}
	candidate, err := s.candidateRepo.GetByID(ctx, ref.CandidateID)
	if err != nil {
		return nil, nil, err
	}
	if candidate.UserID != userID {
		return nil, nil, utils.ErrAccessDenied
	}
	return ref, candidate, nil
}

// ScheduleReference sets a future dial time. Past times and terminal
// references are rejected.
func (s *OutreachService) ScheduleReference(ctx context.Context, userID, refID uuid.UUID, when time.Time, timezone string) (*models.Reference, error) {
	if when.Before(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", utils.ErrValidation)
	}
	ref, candidate, err := s.ownedReference(ctx, userID, refID)
	if err != nil {
		return nil, err
	}
	if ref.Status == models.ReferenceStatusCompleted {
		return nil, fmt.Errorf("%w: cannot schedule a completed reference", utils.ErrValidation)
	}

	schedulable := []models.ReferenceStatusType{
		models.ReferenceStatusPending,
		models.ReferenceStatusScheduled,
		models.ReferenceStatusNoAnswer,
		models.ReferenceStatusSMSSent,
		models.ReferenceStatusFailed,
	}
	updated, applied, err := s.refRepo.TransitionAtomic(ctx, refID, schedulable, func(r *models.Reference) error {
		if !r.CanTransition(models.ReferenceStatusScheduled) {
			return fmt.Errorf("%w: cannot schedule reference in status %s", utils.ErrInvalidTransition, r.Status)
		}
		r.Status = models.ReferenceStatusScheduled
		r.ScheduledTime = &when
		if timezone != "" {
			r.Timezone = timezone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: cannot schedule reference in status %s", utils.ErrInvalidTransition, updated.Status)
	}

	s.audit(ctx, candidate.UserID, "reference.scheduled", "reference", refID.String())
	utils.Logger.Infof("Reference %s scheduled for %s", refID, when.UTC().Format(time.RFC3339))
	return updated, nil
}

// StartOutreach dispatches calls for every due reference of a candidate.
// Already-dispatched and terminal references are skipped, so repeated
// invocations are harmless.
func (s *OutreachService) StartOutreach(ctx context.Context, userID, candidateID uuid.UUID) (int, error) {
	candidate, err := s.candidateRepo.GetByID(ctx, candidateID)
	if err != nil {
		return 0, err
	}
	if candidate.UserID != userID {
		return 0, utils.ErrAccessDenied
	}

	creds, err := s.userRepo.GetCredentials(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !creds.HasVapi() {
		return 0, fmt.Errorf("%w: Vapi API key and phone number ID are required to place calls", utils.ErrMissingProviderCredentials)
	}

	job, err := s.jobRepo.PrimaryForCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return 0, err
	}

	due, err := s.refRepo.ListDueForDispatch(ctx, candidateID, time.Now())
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, ref := range due {
		if err := s.DispatchCall(ctx, ref, candidate, job, creds); err != nil {
			utils.Logger.WithError(err).Warnf("Dispatch failed for reference %s", ref.ID)
			continue
		}
		dispatched++
	}

	if dispatched > 0 && candidate.Status == models.CandidateStatusIntake {
		if err := s.candidateRepo.UpdateStatus(ctx, candidateID, models.CandidateStatusInProgress); err != nil {
			utils.Logger.WithError(err).Warnf("Failed to mark candidate %s in progress", candidateID)
		}
	}

	s.audit(ctx, userID, "outreach.started", "candidate", candidateID.String())
	utils.Logger.Infof("Outreach started for candidate %s: %d call(s) dispatched", candidateID, dispatched)
	return dispatched, nil
}

// DispatchCall places one outbound call and records it. The provider
// call happens outside any transaction; only the bookkeeping transition
// is atomic.
func (s *OutreachService) DispatchCall(
	ctx context.Context,
	ref *models.Reference,
	candidate *models.Candidate,
	job *models.Job,
	creds models.ProviderCredentials,
) error {
	if !ref.CanTransition(models.ReferenceStatusCalling) {
		return fmt.Errorf("%w: cannot dial reference in status %s", utils.ErrInvalidTransition, ref.Status)
	}

	callID, err := s.dispatcher.PlaceCall(ctx, ref, candidate, job, creds)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, applied, err := s.refRepo.TransitionAtomic(ctx, ref.ID,
		[]models.ReferenceStatusType{models.ReferenceStatusPending, models.ReferenceStatusScheduled},
		func(r *models.Reference) error {
			r.Status = models.ReferenceStatusCalling
			r.CallID = &callID
			r.CallPlacedAt = &now
			r.CallAttempts++
			outcome := models.CallOutcomeInProgress
			r.LastOutcome = &outcome
			return nil
		})
	if err != nil {
		return err
	}
	if !applied {
		// Another dispatcher won the race; the provider call still exists
		// and its result will arrive under the recorded call ID.
		utils.Logger.Warnf("Reference %s left dispatchable state mid-dispatch, call %s placed anyway", ref.ID, callID)
		return nil
	}

	utils.Logger.Infof("Call %s placed for reference %s (attempt %d)", callID, ref.ID, ref.CallAttempts+1)
	return nil
}

// HandleCallResult ingests one terminal call result, from the webhook or
// the reconciliation poller. Results for calls no longer in `calling`
// are dropped, which makes redelivery safe.
func (s *OutreachService) HandleCallResult(ctx context.Context, res *CallResult) error {
	if res.Outcome == models.CallOutcomeInProgress {
		return nil
	}

	ref, err := s.refRepo.GetByCallID(ctx, res.CallID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.Logger.Warnf("Call result for unknown call %s dropped", res.CallID)
			return nil
		}
		return err
	}

	// Cheap duplicate check; TransitionAtomic below is the real guard.
	if ref.Status != models.ReferenceStatusCalling {
		utils.Logger.Infof("Duplicate result for call %s ignored, reference %s already %s", res.CallID, ref.ID, ref.Status)
		return nil
	}

	candidate, err := s.candidateRepo.GetByID(ctx, ref.CandidateID)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, candidate.UserID)
	if err != nil {
		return err
	}

	outcome := res.Outcome
	var analysis *AnalysisResult
	if outcome == models.CallOutcomeAnswered {
		var job *models.Job
		if ref.JobID != nil {
			if job, err = s.jobRepo.GetByID(ctx, *ref.JobID); err != nil && !errors.Is(err, utils.ErrNotFound) {
				return err
			}
		} else if job, err = s.jobRepo.PrimaryForCandidate(ctx, ref.CandidateID); err != nil && !errors.Is(err, utils.ErrNotFound) {
			return err
		}

		analysis, err = s.analyzer.Analyze(ctx, res.Transcript, BuildClaimSet(candidate, job))
		switch {
		case errors.Is(err, utils.ErrUnusableTranscript):
			// The callee picked up but nothing analyzable was said.
			outcome = models.CallOutcomeNoAnswer
		case err != nil:
			// Transient analyzer failure. Record the transcript but keep the
			// reference in `calling` so the poller retries analysis later.
			if uerr := s.refRepo.UpdateWithRetry(ctx, ref.ID, func(r *models.Reference) error {
				r.Transcript = res.Transcript
				return nil
			}); uerr != nil {
				utils.Logger.WithError(uerr).Warnf("Failed to stash transcript for reference %s", ref.ID)
			}
			return fmt.Errorf("analyze transcript for call %s: %w", res.CallID, err)
		}
	}

	now := time.Now().UTC()
	updated, applied, err := s.refRepo.TransitionAtomic(ctx, ref.ID,
		[]models.ReferenceStatusType{models.ReferenceStatusCalling},
		func(r *models.Reference) error {
			r.LastOutcome = &outcome
			r.Transcript = res.Transcript

			switch outcome {
			case models.CallOutcomeAnswered:
				r.Status = models.ReferenceStatusCompleted
				r.CompletedAt = &now
				score := CalculateVerificationScore(analysis)
				r.Score = &score
				r.Summary = analysis.Summary
				r.Sentiment = analysis.OverallSentiment
				r.RedFlags = analysis.RedFlags
				r.Discrepancies = analysis.Discrepancies
				r.AchievementsVerified = analysis.AchievementsVerified
				r.AchievementsNotVerified = analysis.AchievementsNotVerified
				r.PositiveSignals = analysis.PositiveSignals
				if raw, merr := json.Marshal(analysis); merr == nil {
					r.StructuredData = raw
				}

			case models.CallOutcomeNoAnswer, models.CallOutcomeBusy:
				r.Status = models.ReferenceStatusNoAnswer
				r.Notes = "Call not answered: " + res.EndedReason

			default:
				r.Status = models.ReferenceStatusFailed
				r.Notes = "Call failed: " + res.EndedReason
			}
			return nil
		})
	if err != nil {
		return err
	}
	if !applied {
		utils.Logger.Infof("Duplicate result for call %s ignored, reference %s already %s", res.CallID, ref.ID, updated.Status)
		return nil
	}

	// The row lands in no_answer first and is upgraded to sms_sent only
	// once the text actually went out, so a failed send never claims one.
	if updated.Status == models.ReferenceStatusNoAnswer && !updated.SMSSent && s.canSendSMS(user) {
		updated = s.sendFallbackSMS(ctx, user, candidate, updated)
	}

	s.audit(ctx, candidate.UserID, "reference.call_"+string(outcome), "reference", ref.ID.String())
	utils.Logger.Infof("Reference %s moved to %s (call %s, reason %q)", ref.ID, updated.Status, res.CallID, res.EndedReason)

	if updated.IsTerminal() {
		s.finalizeCandidate(ctx, user, candidate, updated)
	}
	return nil
}

func (s *OutreachService) canSendSMS(user *models.User) bool {
	return s.sms != nil && user.TwilioAccountSID != ""
}

// sendFallbackSMS texts the reference and, on success, upgrades the row
// from no_answer to sms_sent. The send happens outside any transaction;
// when it fails the reference stays no_answer. Returns the reference in
// its final state.
func (s *OutreachService) sendFallbackSMS(ctx context.Context, user *models.User, candidate *models.Candidate, ref *models.Reference) *models.Reference {
	creds, err := s.userRepo.GetCredentials(ctx, user.ID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to load credentials for fallback SMS, reference %s", ref.ID)
		return ref
	}
	body := FollowUpSMSBody(ref, candidate)
	if user.SMSTemplate != "" {
		body = FormatSMSMessage(user.SMSTemplate, candidate)
	}
	if _, err := s.sms.Send(ctx, ref.Phone, body, creds); err != nil {
		utils.Logger.WithError(err).Warnf("Fallback SMS failed for reference %s", ref.ID)
		return ref
	}

	now := time.Now().UTC()
	upgraded, applied, err := s.refRepo.TransitionAtomic(ctx, ref.ID,
		[]models.ReferenceStatusType{models.ReferenceStatusNoAnswer},
		func(r *models.Reference) error {
			r.Status = models.ReferenceStatusSMSSent
			r.SMSSent = true
			r.SMSSentAt = &now
			return nil
		})
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to record fallback SMS for reference %s", ref.ID)
		return ref
	}
	if !applied {
		utils.Logger.Infof("Reference %s moved past no_answer before fallback SMS was recorded", ref.ID)
		return upgraded
	}
	utils.Logger.Infof("Fallback SMS sent for reference %s", ref.ID)
	return upgraded
}

// finalizeCandidate marks the candidate completed once every reference
// is terminal, and alerts the owner about concerning completions.
func (s *OutreachService) finalizeCandidate(ctx context.Context, user *models.User, candidate *models.Candidate, ref *models.Reference) {
	if ref.Status == models.ReferenceStatusCompleted && s.notifier != nil && ShouldAlert(ref) {
		s.notifier.SendCompletionAlert(user, candidate, ref)
	}

	refs, err := s.refRepo.ListByCandidate(ctx, candidate.ID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to list references for candidate %s", candidate.ID)
		return
	}
	for _, r := range refs {
		if !r.IsTerminal() {
			return
		}
	}
	if err := s.candidateRepo.UpdateStatus(ctx, candidate.ID, models.CandidateStatusCompleted); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to complete candidate %s", candidate.ID)
		return
	}
	utils.Logger.Infof("All references terminal, candidate %s completed", candidate.ID)
}

// RetryReference re-queues a failed, unanswered or texted reference for
// another dial attempt.
func (s *OutreachService) RetryReference(ctx context.Context, userID, refID uuid.UUID) (*models.Reference, error) {
	_, candidate, err := s.ownedReference(ctx, userID, refID)
	if err != nil {
		return nil, err
	}

	retryable := []models.ReferenceStatusType{
		models.ReferenceStatusNoAnswer,
		models.ReferenceStatusSMSSent,
		models.ReferenceStatusFailed,
	}
	updated, applied, err := s.refRepo.TransitionAtomic(ctx, refID, retryable, func(r *models.Reference) error {
		if !r.CanTransition(models.ReferenceStatusScheduled) {
			return fmt.Errorf("%w: reference %s has exhausted its %d call attempts", utils.ErrInvalidTransition, refID, models.MaxCallAttempts)
		}
		r.Status = models.ReferenceStatusScheduled
		r.ScheduledTime = nil
		r.Notes = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: cannot retry reference in status %s", utils.ErrInvalidTransition, updated.Status)
	}

	s.audit(ctx, candidate.UserID, "reference.retry", "reference", refID.String())
	return updated, nil
}

// SendFollowUpSMS sends a manual callback-request text. One per
// reference; the sms_sent flag is the guard.
func (s *OutreachService) SendFollowUpSMS(ctx context.Context, userID, refID uuid.UUID) error {
	ref, candidate, err := s.ownedReference(ctx, userID, refID)
	if err != nil {
		return err
	}
	if ref.SMSSent {
		return fmt.Errorf("%w: follow-up SMS already sent for this reference", utils.ErrValidation)
	}
	if ref.Status == models.ReferenceStatusCalling || ref.Status == models.ReferenceStatusCompleted {
		return fmt.Errorf("%w: cannot text a reference in status %s", utils.ErrInvalidTransition, ref.Status)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	creds, err := s.userRepo.GetCredentials(ctx, userID)
	if err != nil {
		return err
	}

	body := FollowUpSMSBody(ref, candidate)
	if user.SMSTemplate != "" {
		body = FormatSMSMessage(user.SMSTemplate, candidate)
	}
	if _, err := s.sms.Send(ctx, ref.Phone, body, creds); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.refRepo.UpdateWithRetry(ctx, refID, func(r *models.Reference) error {
		r.SMSSent = true
		r.SMSSentAt = &now
		return nil
	}); err != nil {
		utils.Logger.WithError(err).Warnf("SMS sent but flag update failed for reference %s", refID)
	}

	s.audit(ctx, userID, "reference.sms_sent", "reference", refID.String())
	return nil
}

// HandleSMSReply records an inbound text on the reference and, when the
// reply names a usable callback time, reschedules the call for it. The
// note is written even when no time parses; parse failures never bounce
// the webhook back to Twilio.
func (s *OutreachService) HandleSMSReply(ctx context.Context, ref *models.Reference, candidate *models.Candidate, body string) error {
	note := "Reply received " + time.Now().UTC().Format(time.RFC3339) + ": " + body
	if err := s.refRepo.UpdateWithRetry(ctx, ref.ID, func(r *models.Reference) error {
		if r.Notes != "" {
			r.Notes += "\n"
		}
		r.Notes += note
		return nil
	}); err != nil {
		return err
	}
	s.audit(ctx, candidate.UserID, "reference.sms_reply", "reference", ref.ID.String())

	if s.replies == nil {
		return nil
	}
	when, err := s.replies.ParseCallbackTime(ctx, body, ref.Timezone, time.Now().UTC())
	if err != nil {
		utils.Logger.WithError(err).Warnf("Callback time parse failed for reference %s", ref.ID)
		return nil
	}
	if when == nil || !when.After(time.Now()) {
		return nil
	}
	if _, err := s.ScheduleReference(ctx, candidate.UserID, ref.ID, *when, ref.Timezone); err != nil {
		utils.Logger.WithError(err).Infof("Callback time from reply not applied to reference %s", ref.ID)
		return nil
	}
	utils.Logger.Infof("Reference %s rescheduled to %s from SMS reply", ref.ID, when.UTC().Format(time.RFC3339))
	return nil
}
