package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is one claimed past position on a candidate's resume. Its fields are
// the claims a reference is asked to corroborate.
type Job struct {
	ID          uuid.UUID `json:"id"`
	CandidateID uuid.UUID `json:"candidate_id"`

	Company string `json:"company"`
	Title   string `json:"title,omitempty"`
	Dates   string `json:"dates,omitempty"`

	Responsibilities []string `json:"responsibilities,omitempty"`
	Achievements     []string `json:"achievements,omitempty"`

	// Resume ordering, most recent first.
	Ordering int `json:"ordering"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
