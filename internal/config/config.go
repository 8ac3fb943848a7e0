package config

import (
	"crypto/rsa"
	"encoding/base64"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type Config struct {
	AppName string
	AppPort string
	AppUrl  string
	Env     string

	DBUrl           string
	DBEncryptionKey []byte

	RSAPublicKey *rsa.PublicKey

	// Shared secret Vapi signs webhook payloads with.
	VapiWebhookSecret string
	VapiBaseURL       string

	// Platform OpenAI key for transcript analysis. Call placement uses
	// per-tenant keys; analysis is ours.
	OpenAIAPIKey string

	SendgridAPIKey      string
	SendgridFromEmail   string
	SendgridFromName    string
	SendgridSandboxMode bool

	CORSAllowedOrigins []string
}

func LoadConfig() *Config {
	appName := os.Getenv("APP_NAME")
	if appName == "" {
		appName = "refcheck-backend"
	}
	utils.Logger.Info("Loading config for app: ", appName)

	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV env var is missing")
	}
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}
	appUrl := os.Getenv("APP_URL")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL env var is missing")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		utils.Logger.Fatal("DB_URL env var is missing")
	}

	dbEncB64 := os.Getenv("DB_ENCRYPTION_KEY_BASE64")
	if dbEncB64 == "" {
		utils.Logger.Fatal("DB_ENCRYPTION_KEY_BASE64 env var is missing")
	}
	dbEncKey, err := base64.StdEncoding.DecodeString(dbEncB64)
	if err != nil || len(dbEncKey) != 32 {
		utils.Logger.Fatal("DB_ENCRYPTION_KEY_BASE64 invalid – expect 32-byte key")
	}

	pubB64 := os.Getenv("RSA_PUBLIC_KEY_BASE64")
	if pubB64 == "" {
		utils.Logger.Fatal("RSA_PUBLIC_KEY_BASE64 env var is missing")
	}
	pubPEM, _ := base64.StdEncoding.DecodeString(pubB64)
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	vapiWebhookSecret := os.Getenv("VAPI_WEBHOOK_SECRET")
	if vapiWebhookSecret == "" {
		utils.Logger.Fatal("VAPI_WEBHOOK_SECRET env var is missing")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		utils.Logger.Warn("OPENAI_API_KEY not set; transcript analysis disabled")
	}

	sendgridKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridKey == "" {
		utils.Logger.Warn("SENDGRID_API_KEY not set; alert emails disabled")
	}
	sgFrom := os.Getenv("SENDGRID_FROM_EMAIL")
	if sgFrom == "" {
		sgFrom = "alerts@refcheck.ai"
	}
	sgFromName := os.Getenv("SENDGRID_FROM_NAME")
	if sgFromName == "" {
		sgFromName = "RefCheck Alerts"
	}
	sgSandbox, _ := strconv.ParseBool(os.Getenv("SENDGRID_SANDBOX_MODE"))

	corsOrigins := []string{"*"}
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		corsOrigins = splitAndTrim(raw)
	}

	return &Config{
		AppName:             appName,
		AppPort:             appPort,
		AppUrl:              appUrl,
		Env:                 env,
		DBUrl:               dbURL,
		DBEncryptionKey:     dbEncKey,
		RSAPublicKey:        pubKey,
		VapiWebhookSecret:   vapiWebhookSecret,
		VapiBaseURL:         os.Getenv("VAPI_BASE_URL"),
		OpenAIAPIKey:        openAIKey,
		SendgridAPIKey:      sendgridKey,
		SendgridFromEmail:   sgFrom,
		SendgridFromName:    sgFromName,
		SendgridSandboxMode: sgSandbox,
		CORSAllowedOrigins:  corsOrigins,
	}
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
