package dtos

type HealthCheckResponse struct {
	Status string `json:"status"`
}

// ValidationErrorDetail is one field-level failure in a 400 response.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
