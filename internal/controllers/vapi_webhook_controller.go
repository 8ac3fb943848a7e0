package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
	"github.com/refcheckai/refcheck-backend/internal/utils/vapi"
)

const vapiSignatureHeader = "X-Vapi-Signature"

// maxWebhookBody caps webhook payloads at 1 MiB; transcripts are text.
const maxWebhookBody = 1 << 20

// VapiWebhookController receives end-of-call reports. Unsigned or
// badly-signed requests are rejected before any parsing.
type VapiWebhookController struct {
	callService     *services.VapiCallService
	outreachService *services.OutreachService
}

func NewVapiWebhookController(vs *services.VapiCallService, os *services.OutreachService) *VapiWebhookController {
	return &VapiWebhookController{callService: vs, outreachService: os}
}

// POST /api/v1/webhooks/vapi
func (c *VapiWebhookController) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "VapiWebhook")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Unreadable body", nil, err)
		return
	}

	if !c.callService.VerifyWebhookSignature(body, r.Header.Get(vapiSignatureHeader)) {
		logger.Warn("Webhook signature verification failed")
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeUnauthorized, "Invalid signature", nil)
		return
	}

	var envelope vapi.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}

	msg := envelope.Message
	if msg.Type != vapi.WebhookTypeEndOfCallReport {
		// Status updates, transcripts-in-progress and the like. Ack and drop.
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if msg.Call.ID == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Missing call ID", nil)
		return
	}

	// The report carries endedReason/artifact at the message level; the
	// embedded call resource may be stale.
	endedReason := msg.EndedReason
	if endedReason == "" {
		endedReason = msg.Call.EndedReason
	}
	transcript := msg.Artifact.Transcript
	if transcript == "" {
		transcript = msg.Call.Artifact.Transcript
	}
	recordingURL := msg.Artifact.RecordingURL
	if recordingURL == "" {
		recordingURL = msg.Call.Artifact.RecordingURL
	}

	res := &services.CallResult{
		CallID:       msg.Call.ID,
		Outcome:      services.MapEndedReason(endedReason, transcript),
		EndedReason:  endedReason,
		Transcript:   transcript,
		RecordingURL: recordingURL,
	}

	if err := c.outreachService.HandleCallResult(r.Context(), res); err != nil {
		logger.WithError(err).Error("Failed to ingest call result")
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
