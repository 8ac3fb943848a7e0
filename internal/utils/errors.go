package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrValidation         = errors.New("validation_error")
	ErrNotFound           = errors.New("not_found")
	ErrAccessDenied       = errors.New("access_denied")
	ErrInvalidTransition  = errors.New("invalid_state_transition")
	ErrUnusableTranscript = errors.New("unusable_transcript")

	// Per-tenant provider keys missing or rejected by the provider.
	ErrMissingProviderCredentials = errors.New("missing_provider_credentials")
	ErrInvalidProviderCredentials = errors.New("invalid_provider_credentials")

	// For external service failures (Vapi, Twilio, OpenAI, SendGrid)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// HandleAppError centralizes responding to service-layer errors. It
// understands both structured AppErrors and the domain sentinels.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
		return
	}

	switch {
	case errors.Is(err, ErrValidation):
		RespondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		RespondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil, err)
	case errors.Is(err, ErrAccessDenied):
		// 404, not 403: don't leak which IDs exist to other tenants.
		RespondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil, err)
	case errors.Is(err, ErrInvalidTransition):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeInvalidState, err.Error(), nil)
	case errors.Is(err, ErrRowVersionConflict):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeRowVersionConflict, "The resource was modified concurrently, retry", nil, err)
	case errors.Is(err, ErrMissingProviderCredentials), errors.Is(err, ErrInvalidProviderCredentials):
		RespondErrorWithCode(w, http.StatusUnprocessableEntity, ErrCodeCredential, err.Error(), nil)
	case errors.Is(err, ErrUnusableTranscript):
		RespondErrorWithCode(w, http.StatusUnprocessableEntity, ErrCodeAnalysis, err.Error(), nil)
	case errors.Is(err, ErrExternalServiceFailure):
		RespondErrorWithCode(w, http.StatusBadGateway, ErrCodeExternalServiceFailure, "An upstream provider failed", nil, err)
	default:
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
