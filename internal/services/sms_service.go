package services

import (
	"context"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// SMSSender sends one text message with the tenant's own Twilio account.
type SMSSender interface {
	Send(ctx context.Context, to, body string, creds models.ProviderCredentials) (sid string, err error)
}

// TwilioSMSService implements SMSSender. A fresh RestClient is built per
// send because credentials differ per tenant.
type TwilioSMSService struct{}

func NewTwilioSMSService() *TwilioSMSService {
	return &TwilioSMSService{}
}

func (s *TwilioSMSService) Send(ctx context.Context, to, body string, creds models.ProviderCredentials) (string, error) {
	if !creds.HasTwilio() {
		return "", utils.ErrMissingProviderCredentials
	}

	twClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.TwilioAccountSID,
		Password: creds.TwilioAuthToken,
	})

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(creds.TwilioPhoneNumber)
	params.SetTo(utils.FormatPhoneE164(to))
	params.SetBody(body)

	msg, err := twClient.Api.CreateMessage(params)
	if err != nil {
		if restErr, ok := err.(*twilioclient.TwilioRestError); ok && (restErr.Status == 401 || restErr.Status == 403) {
			return "", fmt.Errorf("%w: %v", utils.ErrInvalidProviderCredentials, err)
		}
		return "", fmt.Errorf("%w: %v", utils.ErrExternalServiceFailure, err)
	}
	if msg.Sid == nil {
		return "", nil
	}
	return *msg.Sid, nil
}

// DefaultSMSTemplate is used when neither the candidate nor the user has
// set one.
const DefaultSMSTemplate = "Hi, we tried to reach you regarding a reference check for " +
	"{{candidate_first_name}} {{candidate_last_name}}. Is there a better time to call you back? " +
	"Please reply with a day and time."

// FormatSMSMessage substitutes template variables with candidate info.
// Supported: {{candidate_first_name}}, {{candidate_last_name}},
// {{candidate_name}}, {{position}}.
func FormatSMSMessage(template string, candidate *models.Candidate) string {
	r := strings.NewReplacer(
		"{{candidate_first_name}}", candidate.FirstName(),
		"{{candidate_last_name}}", candidate.LastName(),
		"{{candidate_name}}", candidate.Name,
		"{{position}}", candidate.Position,
	)
	return r.Replace(template)
}

// FollowUpSMSBody is the default callback-request text sent when a call
// fails to connect.
func FollowUpSMSBody(ref *models.Reference, candidate *models.Candidate) string {
	refFirst := ref.Name
	if i := strings.IndexByte(refFirst, ' '); i > 0 {
		refFirst = refFirst[:i]
	}
	return fmt.Sprintf(
		"Hi %s, we tried to reach you regarding a reference check for %s. Is there a better time to call you back? Please reply with a day and time (e.g., 'Tomorrow at 3pm EST').",
		refFirst, candidate.Name,
	)
}
