package dtos

// CreateReferenceRequest adds one person to call for a candidate.
type CreateReferenceRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=200"`
	Phone        string `json:"phone" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Relationship string `json:"relationship" validate:"omitempty,max=200"`

	// Ties the reference to one claimed job; empty means the candidate's
	// most recent position.
	JobID string `json:"job_id" validate:"omitempty,uuid4"`

	CustomQuestions []string `json:"custom_questions" validate:"omitempty,max=10,dive,max=500"`
}

// UpdateReferenceRequest edits contact details. Status is never settable
// from outside.
type UpdateReferenceRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=2,max=200"`
	Phone        *string `json:"phone" validate:"omitempty"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Relationship *string `json:"relationship" validate:"omitempty,max=200"`

	CustomQuestions *[]string `json:"custom_questions" validate:"omitempty,max=10,dive,max=500"`
}

// ScheduleReferenceRequest sets a future dial time, RFC 3339.
type ScheduleReferenceRequest struct {
	ScheduledTime string `json:"scheduled_time" validate:"required"`
	Timezone      string `json:"timezone" validate:"omitempty,max=64"`
}

// StartOutreachResponse reports how many calls one sweep placed.
type StartOutreachResponse struct {
	Dispatched int    `json:"dispatched"`
	Message    string `json:"message"`
}
