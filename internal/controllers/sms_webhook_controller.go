package controllers

import (
	"errors"
	"net/http"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// SMSWebhookController receives inbound Twilio messages: a reference
// replying to the callback-request text. Replies go through the
// outreach service, which records them and reschedules the call when
// the reply names a time.
type SMSWebhookController struct {
	refRepo       repositories.ReferenceRepository
	candidateRepo repositories.CandidateRepository
	userRepo      repositories.UserRepository
	outreach      *services.OutreachService

	// PublicURL is the externally visible URL of this endpoint, needed to
	// recompute Twilio's signature.
	PublicURL string
}

func NewSMSWebhookController(
	refRepo repositories.ReferenceRepository,
	candidateRepo repositories.CandidateRepository,
	userRepo repositories.UserRepository,
	outreach *services.OutreachService,
	publicURL string,
) *SMSWebhookController {
	return &SMSWebhookController{
		refRepo:       refRepo,
		candidateRepo: candidateRepo,
		userRepo:      userRepo,
		outreach:      outreach,
		PublicURL:     publicURL,
	}
}

// POST /api/v1/webhooks/sms
func (c *SMSWebhookController) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "SMSWebhook")

	if err := r.ParseForm(); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Unparseable form body", nil, err)
		return
	}
	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")

	// Delivery status callbacks carry MessageStatus and no Body; the
	// reference's number is in To (we were the sender).
	if status := r.PostForm.Get("MessageStatus"); status != "" && body == "" {
		c.handleStatusCallback(w, r, status)
		return
	}

	if from == "" || body == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Missing From or Body", nil)
		return
	}

	ref, err := c.refRepo.GetLatestByPhone(r.Context(), utils.FormatPhoneE164(from))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// Not one of ours. Ack so Twilio stops retrying.
			logger.Infof("Inbound SMS from unknown number dropped")
			w.WriteHeader(http.StatusOK)
			return
		}
		utils.HandleAppError(w, err)
		return
	}

	candidate, err := c.candidateRepo.GetByID(r.Context(), ref.CandidateID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	creds, err := c.userRepo.GetCredentials(r.Context(), candidate.UserID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	// The signature is computed with the receiving tenant's auth token.
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	validator := twilioclient.NewRequestValidator(creds.TwilioAuthToken)
	if !validator.Validate(c.PublicURL, params, r.Header.Get("X-Twilio-Signature")) {
		logger.Warn("Twilio signature verification failed")
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeUnauthorized, "Invalid signature", nil)
		return
	}

	if err := c.outreach.HandleSMSReply(r.Context(), ref, candidate, body); err != nil {
		logger.WithError(err).Error("Failed to record SMS reply")
		utils.HandleAppError(w, err)
		return
	}

	logger.Infof("SMS reply recorded for reference %s", ref.ID)
	// Twilio expects TwiML or an empty 200; empty means no auto-reply.
	w.WriteHeader(http.StatusOK)
}

func (c *SMSWebhookController) handleStatusCallback(w http.ResponseWriter, r *http.Request, status string) {
	logger := utils.Logger.WithField("handler", "SMSWebhook")

	to := r.PostForm.Get("To")
	if to == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Missing To", nil)
		return
	}

	ref, err := c.refRepo.GetLatestByPhone(r.Context(), utils.FormatPhoneE164(to))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			w.WriteHeader(http.StatusOK)
			return
		}
		utils.HandleAppError(w, err)
		return
	}

	candidate, err := c.candidateRepo.GetByID(r.Context(), ref.CandidateID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	creds, err := c.userRepo.GetCredentials(r.Context(), candidate.UserID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	validator := twilioclient.NewRequestValidator(creds.TwilioAuthToken)
	if !validator.Validate(c.PublicURL, params, r.Header.Get("X-Twilio-Signature")) {
		logger.Warn("Twilio signature verification failed on status callback")
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeUnauthorized, "Invalid signature", nil)
		return
	}

	// Only terminal failures are worth recording; queued/sent/delivered
	// are routine.
	if status == "failed" || status == "undelivered" {
		note := "SMS delivery failed (" + status + ") " + time.Now().UTC().Format(time.RFC3339)
		if err := c.refRepo.UpdateWithRetry(r.Context(), ref.ID, func(rr *models.Reference) error {
			if rr.Notes != "" {
				rr.Notes += "\n"
			}
			rr.Notes += note
			return nil
		}); err != nil {
			logger.WithError(err).Error("Failed to record SMS delivery failure")
			utils.HandleAppError(w, err)
			return
		}
		logger.Warnf("SMS to reference %s not delivered (%s)", ref.ID, status)
	}

	w.WriteHeader(http.StatusOK)
}
