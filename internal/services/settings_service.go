package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/refcheckai/refcheck-backend/internal/dtos"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// SettingsService reads and patches tenant settings, including the
// provider credentials. Secrets go in, only configured-or-not comes out.
type SettingsService struct {
	userRepo repositories.UserRepository
}

func NewSettingsService(userRepo repositories.UserRepository) *SettingsService {
	return &SettingsService{userRepo: userRepo}
}

func (s *SettingsService) GetSettings(ctx context.Context, userID uuid.UUID) (*dtos.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dtos.SettingsResponse{
		Email:            user.Email,
		CompanyName:      user.CompanyName,
		SMSTemplate:      user.SMSTemplate,
		Timezone:         user.Timezone,
		VapiConfigured:   user.VapiAPIKey != "" && user.VapiPhoneNumberID != "",
		TwilioConfigured: user.TwilioAccountSID != "" && user.TwilioAuthToken != "" && user.TwilioPhoneNumber != "",
	}, nil
}

func (s *SettingsService) UpdateSettings(ctx context.Context, userID uuid.UUID, req *dtos.UpdateSettingsRequest) (*dtos.SettingsResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Stored credentials are encrypted; start the patch from the decrypted
	// values so unchanged ones round-trip intact.
	creds, err := s.userRepo.GetCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.VapiAPIKey = creds.VapiAPIKey
	user.VapiPhoneNumberID = creds.VapiPhoneNumberID
	user.TwilioAccountSID = creds.TwilioAccountSID
	user.TwilioAuthToken = creds.TwilioAuthToken
	user.TwilioPhoneNumber = creds.TwilioPhoneNumber

	if req.CompanyName != nil {
		user.CompanyName = *req.CompanyName
	}
	if req.SMSTemplate != nil {
		user.SMSTemplate = *req.SMSTemplate
	}
	if req.Timezone != nil {
		user.Timezone = *req.Timezone
	}
	if req.VapiAPIKey != nil {
		user.VapiAPIKey = *req.VapiAPIKey
	}
	if req.VapiPhoneNumberID != nil {
		user.VapiPhoneNumberID = *req.VapiPhoneNumberID
	}
	if req.TwilioAccountSID != nil {
		user.TwilioAccountSID = *req.TwilioAccountSID
	}
	if req.TwilioAuthToken != nil {
		user.TwilioAuthToken = *req.TwilioAuthToken
	}
	if req.TwilioPhoneNumber != nil {
		user.TwilioPhoneNumber = utils.FormatPhoneE164(*req.TwilioPhoneNumber)
	}

	if err := s.userRepo.UpdateSettings(ctx, user); err != nil {
		return nil, err
	}
	utils.Logger.Infof("Settings updated for user %s", userID)
	return s.GetSettings(ctx, userID)
}
