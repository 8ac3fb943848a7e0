package models

import (
	"time"

	"github.com/google/uuid"
)

type ReferenceStatusType string

const (
	ReferenceStatusPending   ReferenceStatusType = "pending"
	ReferenceStatusScheduled ReferenceStatusType = "scheduled"
	ReferenceStatusCalling   ReferenceStatusType = "calling"
	ReferenceStatusCompleted ReferenceStatusType = "completed"
	ReferenceStatusNoAnswer  ReferenceStatusType = "no_answer"
	ReferenceStatusSMSSent   ReferenceStatusType = "sms_sent"
	ReferenceStatusFailed    ReferenceStatusType = "failed"
)

// CallOutcomeType is the terminal outcome of one dialing attempt, as
// reported by the call provider (webhook or poller).
type CallOutcomeType string

const (
	CallOutcomeAnswered   CallOutcomeType = "answered"
	CallOutcomeNoAnswer   CallOutcomeType = "no-answer"
	CallOutcomeBusy       CallOutcomeType = "busy"
	CallOutcomeFailed     CallOutcomeType = "failed"
	CallOutcomeInProgress CallOutcomeType = "in-progress"
)

// MaxCallAttempts bounds retries: once a reference has burned this many
// dial attempts without completing, failed becomes absorbing.
const MaxCallAttempts = 3

type Reference struct {
	Versioned

	ID          uuid.UUID  `json:"id"`
	CandidateID uuid.UUID  `json:"candidate_id"`
	JobID       *uuid.UUID `json:"job_id,omitempty"`

	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship,omitempty"`

	Status ReferenceStatusType `json:"status"`

	// Call bookkeeping. CallID mirrors the provider's identifier; the
	// provider owns the call, we only cache it.
	CallID        *string          `json:"call_id,omitempty"`
	CallPlacedAt  *time.Time       `json:"call_placed_at,omitempty"`
	CallAttempts  int              `json:"call_attempts"`
	LastOutcome   *CallOutcomeType `json:"last_outcome,omitempty"`
	ScheduledTime *time.Time       `json:"scheduled_time,omitempty"`
	Timezone      string           `json:"timezone,omitempty"`

	SMSSent   bool       `json:"sms_sent"`
	SMSSentAt *time.Time `json:"sms_sent_at,omitempty"`

	CustomQuestions []string `json:"custom_questions,omitempty"`

	// Human-readable reason for the current non-terminal state.
	Notes string `json:"notes,omitempty"`

	// Results
	Transcript string  `json:"transcript,omitempty"`
	Score      *int    `json:"score,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Sentiment  string  `json:"sentiment,omitempty"`

	RedFlags                []string `json:"red_flags,omitempty"`
	Discrepancies           []string `json:"discrepancies,omitempty"`
	AchievementsVerified    []string `json:"achievements_verified,omitempty"`
	AchievementsNotVerified []string `json:"achievements_not_verified,omitempty"`
	PositiveSignals         []string `json:"positive_signals,omitempty"`
	StructuredData          []byte   `json:"structured_data,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r *Reference) GetID() string {
	return r.ID.String()
}

// IsTerminal reports whether no further outreach will happen for this
// reference. failed is only absorbing once the attempt budget is spent.
func (r *Reference) IsTerminal() bool {
	switch r.Status {
	case ReferenceStatusCompleted:
		return true
	case ReferenceStatusFailed:
		return r.CallAttempts >= MaxCallAttempts
	default:
		return false
	}
}

// validTransitions is the status graph. Retry (no_answer/sms_sent/failed
// back to scheduled) is gated separately on the attempt budget.
// no_answer -> sms_sent is the fallback-SMS upgrade, applied only after
// the text actually went out.
var validTransitions = map[ReferenceStatusType][]ReferenceStatusType{
	ReferenceStatusPending:   {ReferenceStatusScheduled, ReferenceStatusCalling},
	ReferenceStatusScheduled: {ReferenceStatusScheduled, ReferenceStatusCalling},
	ReferenceStatusCalling:   {ReferenceStatusCompleted, ReferenceStatusNoAnswer, ReferenceStatusSMSSent, ReferenceStatusFailed},
	ReferenceStatusNoAnswer:  {ReferenceStatusScheduled, ReferenceStatusSMSSent},
	ReferenceStatusSMSSent:   {ReferenceStatusScheduled},
	ReferenceStatusFailed:    {ReferenceStatusScheduled},
	ReferenceStatusCompleted: {},
}

// CanTransition reports whether moving this reference to `next` follows the
// status graph. The attempt budget gates the failed -> scheduled edge.
func (r *Reference) CanTransition(next ReferenceStatusType) bool {
	if r.Status == ReferenceStatusFailed && next == ReferenceStatusScheduled &&
		r.CallAttempts >= MaxCallAttempts {
		return false
	}
	for _, allowed := range validTransitions[r.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}
