package models

import (
	"time"

	"github.com/google/uuid"
)

type CandidateStatusType string

const (
	CandidateStatusIntake     CandidateStatusType = "intake"
	CandidateStatusInProgress CandidateStatusType = "in_progress"
	CandidateStatusCompleted  CandidateStatusType = "completed"
	CandidateStatusArchived   CandidateStatusType = "archived"
)

type Candidate struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Position string `json:"position,omitempty"`

	ResumeText     string `json:"resume_text,omitempty"`
	ResumeFilename string `json:"resume_filename,omitempty"`
	Summary        string `json:"summary,omitempty"`

	Status CandidateStatusType `json:"status"`

	// Target role context reused by question generation.
	TargetRoleCategory string `json:"target_role_category,omitempty"`
	TargetRoleDetails  string `json:"target_role_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstName returns the first whitespace-separated token of the name,
// used by SMS template substitution.
func (c *Candidate) FirstName() string {
	for i := 0; i < len(c.Name); i++ {
		if c.Name[i] == ' ' {
			return c.Name[:i]
		}
	}
	return c.Name
}

// LastName returns everything after the first space, or "".
func (c *Candidate) LastName() string {
	for i := 0; i < len(c.Name); i++ {
		if c.Name[i] == ' ' {
			return c.Name[i+1:]
		}
	}
	return ""
}
