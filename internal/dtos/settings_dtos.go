package dtos

// UpdateSettingsRequest patches tenant settings. Credential fields are
// write-only: omitted fields keep their stored value, empty strings
// clear them.
type UpdateSettingsRequest struct {
	CompanyName *string `json:"company_name" validate:"omitempty,max=200"`
	SMSTemplate *string `json:"sms_template" validate:"omitempty,max=1000"`
	Timezone    *string `json:"timezone" validate:"omitempty,max=64"`

	VapiAPIKey        *string `json:"vapi_api_key" validate:"omitempty,max=256"`
	VapiPhoneNumberID *string `json:"vapi_phone_number_id" validate:"omitempty,max=256"`
	TwilioAccountSID  *string `json:"twilio_account_sid" validate:"omitempty,max=256"`
	TwilioAuthToken   *string `json:"twilio_auth_token" validate:"omitempty,max=256"`
	TwilioPhoneNumber *string `json:"twilio_phone_number" validate:"omitempty,max=32"`
}

// SettingsResponse never echoes secrets, only whether they are set.
type SettingsResponse struct {
	Email       string `json:"email"`
	CompanyName string `json:"company_name,omitempty"`
	SMSTemplate string `json:"sms_template,omitempty"`
	Timezone    string `json:"timezone"`

	VapiConfigured   bool `json:"vapi_configured"`
	TwilioConfigured bool `json:"twilio_configured"`
}
