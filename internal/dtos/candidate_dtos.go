package dtos

// CreateCandidateRequest opens a new reference-check case.
type CreateCandidateRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Position string `json:"position" validate:"omitempty,max=200"`

	ResumeText     string `json:"resume_text" validate:"omitempty,max=100000"`
	ResumeFilename string `json:"resume_filename" validate:"omitempty,max=255"`

	TargetRoleCategory string `json:"target_role_category" validate:"omitempty,max=100"`
	TargetRoleDetails  string `json:"target_role_details" validate:"omitempty,max=2000"`
}

type UpdateCandidateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
	Position *string `json:"position" validate:"omitempty,max=200"`
	Summary  *string `json:"summary" validate:"omitempty,max=10000"`

	TargetRoleCategory *string `json:"target_role_category" validate:"omitempty,max=100"`
	TargetRoleDetails  *string `json:"target_role_details" validate:"omitempty,max=2000"`
}

// CreateJobRequest records one claimed past position.
type CreateJobRequest struct {
	Company string `json:"company" validate:"required,max=200"`
	Title   string `json:"title" validate:"omitempty,max=200"`
	Dates   string `json:"dates" validate:"omitempty,max=100"`

	Responsibilities []string `json:"responsibilities" validate:"omitempty,dive,max=500"`
	Achievements     []string `json:"achievements" validate:"omitempty,dive,max=500"`

	Ordering int `json:"ordering" validate:"gte=0"`
}
