package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
	"github.com/refcheckai/refcheck-backend/internal/utils/vapi"
)

// CallResult is the internal shape both the webhook receiver and the
// poller reduce provider payloads to before entering the state machine.
type CallResult struct {
	CallID       string
	Outcome      models.CallOutcomeType
	EndedReason  string
	Transcript   string
	RecordingURL string
}

// CallDispatcher places outbound calls and fetches their results. The
// state machine owns all persistence; implementations are stateless.
type CallDispatcher interface {
	PlaceCall(
		ctx context.Context,
		ref *models.Reference,
		candidate *models.Candidate,
		job *models.Job,
		creds models.ProviderCredentials,
	) (callID string, err error)

	GetCallResult(ctx context.Context, callID string, creds models.ProviderCredentials) (*CallResult, error)
}

// VapiCallService implements CallDispatcher against the Vapi API.
type VapiCallService struct {
	client        *vapi.Client
	webhookSecret string
}

func NewVapiCallService(client *vapi.Client, webhookSecret string) *VapiCallService {
	return &VapiCallService{client: client, webhookSecret: webhookSecret}
}

const (
	assistantName       = "Reference Checker"
	assistantModel      = "gpt-4o"
	assistantVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	maxCallDurationSecs = 600
)

func (s *VapiCallService) PlaceCall(
	ctx context.Context,
	ref *models.Reference,
	candidate *models.Candidate,
	job *models.Job,
	creds models.ProviderCredentials,
) (string, error) {
	if !creds.HasVapi() {
		return "", utils.ErrMissingProviderCredentials
	}

	questions := GenerateReferenceQuestions(job, candidate, ref.CustomQuestions)
	systemPrompt := BuildAssistantPrompt(candidate, ref.Name, job, questions)

	req := vapi.CreateCallRequest{
		PhoneNumberID: creds.VapiPhoneNumberID,
		Customer:      vapi.Customer{Number: utils.FormatPhoneE164(ref.Phone)},
		Assistant: vapi.Assistant{
			Name: assistantName,
			FirstMessage: fmt.Sprintf(
				"Hello, this is Sarah from the hiring verification team. I'm calling regarding a reference check for %s. Am I speaking with %s?",
				candidate.Name, ref.Name,
			),
			Model: vapi.Model{
				Provider:    "openai",
				Model:       assistantModel,
				Messages:    []vapi.ModelMessage{{Role: "system", Content: systemPrompt}},
				Temperature: 0.7,
			},
			Voice:              vapi.Voice{Provider: "11labs", VoiceID: assistantVoiceID},
			MaxDurationSeconds: maxCallDurationSecs,
			EndCallMessage:     "Thank you for your time. Have a great day!",
			Transcriber:        vapi.Transcriber{Provider: "deepgram", Language: "en"},
		},
	}

	call, err := s.client.CreateCall(ctx, creds.VapiAPIKey, req)
	if err != nil {
		var apiErr *vapi.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			return "", fmt.Errorf("%w: %v", utils.ErrInvalidProviderCredentials, err)
		}
		return "", fmt.Errorf("%w: %v", utils.ErrExternalServiceFailure, err)
	}
	return call.ID, nil
}

func (s *VapiCallService) GetCallResult(ctx context.Context, callID string, creds models.ProviderCredentials) (*CallResult, error) {
	if creds.VapiAPIKey == "" {
		return nil, utils.ErrMissingProviderCredentials
	}

	call, err := s.client.GetCall(ctx, creds.VapiAPIKey, callID)
	if err != nil {
		var apiErr *vapi.APIError
		if errors.As(err, &apiErr) {
			if apiErr.IsAuthError() {
				return nil, fmt.Errorf("%w: %v", utils.ErrInvalidProviderCredentials, err)
			}
			// A 404 means the provider no longer knows the call; the
			// poller treats that as a no-answer.
			if apiErr.StatusCode == 404 {
				return &CallResult{CallID: callID, Outcome: models.CallOutcomeNoAnswer, EndedReason: "unknown-to-provider"}, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrExternalServiceFailure, err)
	}

	return ReduceCall(call), nil
}

// VerifyWebhookSignature checks the provider's HMAC-SHA256 signature over
// the raw request body against the shared webhook secret.
func (s *VapiCallService) VerifyWebhookSignature(body []byte, providedSig string) bool {
	if s.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := mac.Sum(nil)
	decodedSig, err := hex.DecodeString(providedSig)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, decodedSig)
}

// unsuccessfulReasons are endedReason fragments that mean the call never
// reached a live human.
var unsuccessfulReasons = []string{
	"voicemail", "no-answer", "no_answer", "busy", "failed", "rejected",
	"declined", "machine", "answering-machine",
	"customer-busy", "customer-did-not-answer", "no-human",
	"assistant-error", "phone-call-provider-closed-websocket",
	"customer-did-not-give-microphone-permission",
}

// minUsableTranscript: anything shorter almost certainly means nobody
// actually talked to the agent.
const minUsableTranscript = 100

// ReduceCall maps a provider call resource to the internal triple.
func ReduceCall(call *vapi.Call) *CallResult {
	res := &CallResult{
		CallID:       call.ID,
		EndedReason:  call.EndedReason,
		Transcript:   call.Artifact.Transcript,
		RecordingURL: call.Artifact.RecordingURL,
	}

	if call.Status != "ended" {
		if strings.Contains(strings.ToLower(call.Status), "fail") ||
			strings.Contains(strings.ToLower(call.Status), "error") {
			res.Outcome = models.CallOutcomeFailed
		} else {
			res.Outcome = models.CallOutcomeInProgress
		}
		return res
	}

	res.Outcome = MapEndedReason(call.EndedReason, call.Artifact.Transcript)
	return res
}

// MapEndedReason classifies a terminal endedReason plus the transcript
// into an outcome. A short transcript downgrades an apparent answer to
// no-answer unless the callee simply hung up mid-conversation.
func MapEndedReason(endedReason, transcript string) models.CallOutcomeType {
	lower := strings.ToLower(endedReason)

	if strings.Contains(lower, "busy") {
		return models.CallOutcomeBusy
	}
	for _, fragment := range unsuccessfulReasons {
		if strings.Contains(lower, fragment) {
			return models.CallOutcomeNoAnswer
		}
	}

	if len(strings.TrimSpace(transcript)) < minUsableTranscript && !strings.Contains(lower, "hangup") {
		return models.CallOutcomeNoAnswer
	}
	return models.CallOutcomeAnswered
}
