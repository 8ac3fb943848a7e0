package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils/vapi"
)

var longTranscript = strings.Repeat("AI: Can you confirm the dates of employment? Reference: Yes, that is correct. ", 5)

func TestMapEndedReason(t *testing.T) {
	cases := []struct {
		endedReason string
		transcript  string
		want        models.CallOutcomeType
	}{
		{"customer-busy", "", models.CallOutcomeBusy},
		{"customer-did-not-answer", "", models.CallOutcomeNoAnswer},
		{"voicemail", "", models.CallOutcomeNoAnswer},
		{"twilio-failed-to-connect-call", "", models.CallOutcomeNoAnswer},
		{"assistant-ended-call", longTranscript, models.CallOutcomeAnswered},
		{"customer-ended-call", longTranscript, models.CallOutcomeAnswered},
		// Picked up but said almost nothing.
		{"assistant-ended-call", "Hello?", models.CallOutcomeNoAnswer},
		{"silence-timed-out", "", models.CallOutcomeNoAnswer},
	}

	for _, c := range cases {
		if got := MapEndedReason(c.endedReason, c.transcript); got != c.want {
			t.Errorf("MapEndedReason(%q, %d chars) = %s, want %s", c.endedReason, len(c.transcript), got, c.want)
		}
	}
}

func TestReduceCallInProgress(t *testing.T) {
	call := &vapi.Call{ID: "call-1", Status: "in-progress"}
	res := ReduceCall(call)
	if res.Outcome != models.CallOutcomeInProgress {
		t.Errorf("expected in-progress outcome, got %s", res.Outcome)
	}
}

func TestReduceCallEnded(t *testing.T) {
	call := &vapi.Call{
		ID:          "call-2",
		Status:      "ended",
		EndedReason: "customer-ended-call",
		Artifact:    vapi.Artifact{Transcript: longTranscript, RecordingURL: "https://example.com/rec.wav"},
	}
	res := ReduceCall(call)
	if res.Outcome != models.CallOutcomeAnswered {
		t.Errorf("expected answered outcome, got %s", res.Outcome)
	}
	if res.Transcript != longTranscript {
		t.Error("transcript not carried through")
	}
	if res.RecordingURL == "" {
		t.Error("recording URL not carried through")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	svc := NewVapiCallService(nil, secret)

	body := []byte(`{"message":{"type":"end-of-call-report"}}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !svc.VerifyWebhookSignature(body, valid) {
		t.Error("valid signature rejected")
	}
	if svc.VerifyWebhookSignature(body, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if svc.VerifyWebhookSignature(body, "") {
		t.Error("empty signature accepted")
	}
	if svc.VerifyWebhookSignature([]byte("tampered"), valid) {
		t.Error("signature accepted for different body")
	}

	noSecret := NewVapiCallService(nil, "")
	if noSecret.VerifyWebhookSignature(body, valid) {
		t.Error("signature accepted with no secret configured")
	}
}
