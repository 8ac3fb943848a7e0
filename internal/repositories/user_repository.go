package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateSettings(ctx context.Context, user *models.User) error

	// GetCredentials returns the user's decrypted provider credentials.
	GetCredentials(ctx context.Context, id uuid.UUID) (models.ProviderCredentials, error)
}

type userRepo struct {
	db     DB
	encKey []byte
}

// NewUserRepository creates a user repository. Provider secrets are
// AES-GCM encrypted with encKey before they touch the database.
func NewUserRepository(db DB, encKey []byte) UserRepository {
	return &userRepo{db: db, encKey: encKey}
}

func baseSelectUser() string {
	return `
        SELECT
            id, email, first_name, last_name, company_name,
            sms_template, timezone,
            vapi_api_key, vapi_phone_number_id,
            twilio_account_sid, twilio_auth_token, twilio_phone_number,
            created_at, updated_at
        FROM users
    `
}

func (r *userRepo) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.CompanyName,
		&u.SMSTemplate,
		&u.Timezone,
		&u.VapiAPIKey,
		&u.VapiPhoneNumberID,
		&u.TwilioAccountSID,
		&u.TwilioAuthToken,
		&u.TwilioPhoneNumber,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRow(ctx, baseSelectUser()+" WHERE id=$1", id)
	u, err := r.scanUser(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return u, err
}

// UpdateSettings persists tenant settings. The credential fields on
// `user` must be plaintext; they are encrypted here, and empty strings
// clear the stored value.
func (r *userRepo) UpdateSettings(ctx context.Context, user *models.User) error {
	encrypted := make([]string, 5)
	for i, secret := range []string{
		user.VapiAPIKey,
		user.VapiPhoneNumberID,
		user.TwilioAccountSID,
		user.TwilioAuthToken,
		user.TwilioPhoneNumber,
	} {
		if secret == "" {
			continue
		}
		enc, err := utils.Encrypt(r.encKey, secret)
		if err != nil {
			return err
		}
		encrypted[i] = enc
	}

	_, err := r.db.Exec(ctx, `
        UPDATE users
        SET company_name=$1, sms_template=$2, timezone=$3,
            vapi_api_key=$4, vapi_phone_number_id=$5,
            twilio_account_sid=$6, twilio_auth_token=$7, twilio_phone_number=$8,
            updated_at=NOW()
        WHERE id=$9
    `,
		user.CompanyName, user.SMSTemplate, user.Timezone,
		encrypted[0], encrypted[1],
		encrypted[2], encrypted[3], encrypted[4],
		user.ID,
	)
	return err
}

func (r *userRepo) GetCredentials(ctx context.Context, id uuid.UUID) (models.ProviderCredentials, error) {
	var creds models.ProviderCredentials

	u, err := r.GetByID(ctx, id)
	if err != nil {
		return creds, err
	}

	for _, field := range []struct {
		enc string
		dst *string
	}{
		{u.VapiAPIKey, &creds.VapiAPIKey},
		{u.VapiPhoneNumberID, &creds.VapiPhoneNumberID},
		{u.TwilioAccountSID, &creds.TwilioAccountSID},
		{u.TwilioAuthToken, &creds.TwilioAuthToken},
		{u.TwilioPhoneNumber, &creds.TwilioPhoneNumber},
	} {
		if field.enc == "" {
			continue
		}
		dec, decErr := utils.Decrypt(r.encKey, field.enc)
		if decErr != nil {
			return models.ProviderCredentials{}, decErr
		}
		*field.dst = dec
	}
	return creds, nil
}
