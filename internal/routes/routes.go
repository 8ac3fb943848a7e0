package routes

const (
	// Health
	Health = "/health"

	// Candidate endpoints
	CandidatesBase      = "/api/v1/candidates"
	CandidateByID       = "/api/v1/candidates/{candidateID}"
	CandidateJobs       = "/api/v1/candidates/{candidateID}/jobs"
	CandidateReferences = "/api/v1/candidates/{candidateID}/references"
	CandidateOutreach   = "/api/v1/candidates/{candidateID}/start-outreach"

	// Reference endpoints
	ReferenceByID       = "/api/v1/references/{referenceID}"
	ReferenceSchedule   = "/api/v1/references/{referenceID}/schedule"
	ReferenceRetry      = "/api/v1/references/{referenceID}/retry"
	ReferenceSendSMS    = "/api/v1/references/{referenceID}/send-sms"
	ReferenceCallStatus = "/api/v1/references/{referenceID}/call-status"

	// Tenant settings
	Settings = "/api/v1/settings"

	// Provider webhooks (unauthenticated, signature-verified)
	WebhooksVapi = "/api/v1/webhooks/vapi"
	WebhooksSMS  = "/api/v1/webhooks/sms"
)
