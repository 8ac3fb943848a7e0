package vapi

// Customer is the callee.
type Customer struct {
	Number string `json:"number"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Model struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Messages    []ModelMessage `json:"messages,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type Transcriber struct {
	Provider string `json:"provider"`
	Language string `json:"language,omitempty"`
}

// Assistant configures the voice agent for one outbound call.
type Assistant struct {
	Name               string      `json:"name"`
	FirstMessage       string      `json:"firstMessage,omitempty"`
	Model              Model       `json:"model"`
	Voice              Voice       `json:"voice"`
	MaxDurationSeconds int         `json:"maxDurationSeconds,omitempty"`
	EndCallMessage     string      `json:"endCallMessage,omitempty"`
	Transcriber        Transcriber `json:"transcriber"`
}

type CreateCallRequest struct {
	PhoneNumberID string    `json:"phoneNumberId"`
	Customer      Customer  `json:"customer"`
	Assistant     Assistant `json:"assistant"`
}

// Artifact holds the post-call outputs.
type Artifact struct {
	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
}

// Call mirrors the provider's call resource. Status values observed:
// queued, ringing, in-progress, forwarding, ended.
type Call struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	EndedReason string   `json:"endedReason,omitempty"`
	Artifact    Artifact `json:"artifact,omitempty"`
}

// Webhook envelope: every event arrives as {"message": {...}}.
type WebhookEnvelope struct {
	Message WebhookMessage `json:"message"`
}

const WebhookTypeEndOfCallReport = "end-of-call-report"

type WebhookMessage struct {
	Type        string   `json:"type"`
	Call        Call     `json:"call"`
	EndedReason string   `json:"endedReason,omitempty"`
	Artifact    Artifact `json:"artifact,omitempty"`
}
