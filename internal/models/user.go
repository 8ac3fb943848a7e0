package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the tenant root: every candidate, job and reference hangs off
// exactly one user, and each user supplies their own provider credentials.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	CompanyName string    `json:"company_name,omitempty"`

	SMSTemplate string `json:"sms_template,omitempty"`
	Timezone    string `json:"timezone"`

	// Provider credentials, AES-GCM encrypted at rest. Decrypted copies are
	// only materialized into ProviderCredentials for the duration of a call.
	VapiAPIKey        string `json:"-"`
	VapiPhoneNumberID string `json:"-"`
	TwilioAccountSID  string `json:"-"`
	TwilioAuthToken   string `json:"-"`
	TwilioPhoneNumber string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// ProviderCredentials is the decrypted per-tenant credential context passed
// into the dispatch/SMS entry points.
type ProviderCredentials struct {
	VapiAPIKey        string
	VapiPhoneNumberID string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
}

// HasVapi reports whether the tenant can place calls.
func (c ProviderCredentials) HasVapi() bool {
	return c.VapiAPIKey != "" && c.VapiPhoneNumberID != ""
}

// HasTwilio reports whether the tenant can send SMS.
func (c ProviderCredentials) HasTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}
