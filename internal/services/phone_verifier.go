package services

import (
	"context"

	twilio "github.com/twilio/twilio-go"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// PhoneVerifier checks that a number is reachable before we store it.
type PhoneVerifier interface {
	Verify(ctx context.Context, number string, creds models.ProviderCredentials) (bool, error)
}

// TwilioPhoneVerifier implements PhoneVerifier with a Lookups V2 fetch.
// Like TwilioSMSService it builds a fresh RestClient per call because
// credentials differ per tenant. Tenants without Twilio credentials get
// the local E.164 check only.
type TwilioPhoneVerifier struct{}

func NewTwilioPhoneVerifier() *TwilioPhoneVerifier {
	return &TwilioPhoneVerifier{}
}

func (v *TwilioPhoneVerifier) Verify(ctx context.Context, number string, creds models.ProviderCredentials) (bool, error) {
	var tw *twilio.RestClient
	if creds.HasTwilio() {
		tw = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: creds.TwilioAccountSID,
			Password: creds.TwilioAuthToken,
		})
	}
	return utils.ValidatePhoneNumber(ctx, number, nil, tw != nil, tw)
}
