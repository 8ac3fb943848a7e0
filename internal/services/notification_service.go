package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

const redFlagEmailHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Reference Check Alert</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif; background-color: #fcf8e3; color: #8a6d3b; margin: 0; padding: 20px; }
  .container { max-width: 600px; margin: auto; background: #fff; border: 1px solid #faebcc; border-radius: 8px; }
  .header { background-color: #fcf8e3; padding: 15px 20px; border-bottom: 1px solid #faebcc; }
  .header h1 { margin: 0; font-size: 20px; color: #8a6d3b; }
  .content { padding: 20px; }
  .content p { margin-top: 0; }
  ul { list-style: none; padding: 0; }
  li { padding: 8px; border-bottom: 1px solid #eee; }
  li:last-child { border-bottom: none; }
  strong { color: #333; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      <p>A completed reference call needs your attention.</p>
      <ul>
        <li><strong>Candidate:</strong> %s</li>
        <li><strong>Reference:</strong> %s (%s)</li>
        <li><strong>Verification Score:</strong> %d / 100</li>
        <li><strong>Red Flags:</strong><ul>%s</ul></li>
        <li><strong>Discrepancies:</strong><ul>%s</ul></li>
        <li><strong>Timestamp (UTC):</strong> %s</li>
      </ul>
    </div>
  </div>
</body>
</html>`

// alertScoreThreshold: completed references scoring below this trigger
// an email to the account owner even without explicit red flags.
const alertScoreThreshold = 40

// NotificationService emails account owners when a completed reference
// call surfaces red flags or a low score.
type NotificationService struct {
	sgClient  *sendgrid.Client
	fromEmail string
	fromName  string
	sandbox   bool
}

func NewNotificationService(sendGridAPIKey, fromEmail, fromName string, sandbox bool) *NotificationService {
	var sg *sendgrid.Client
	if sendGridAPIKey != "" {
		sg = sendgrid.NewSendClient(sendGridAPIKey)
	}
	return &NotificationService{
		sgClient:  sg,
		fromEmail: fromEmail,
		fromName:  fromName,
		sandbox:   sandbox,
	}
}

// ShouldAlert reports whether a completed reference warrants an email.
func ShouldAlert(ref *models.Reference) bool {
	if len(ref.RedFlags) > 0 {
		return true
	}
	return ref.Score != nil && *ref.Score < alertScoreThreshold
}

func htmlItems(items []string) string {
	if len(items) == 0 {
		return "<li>None</li>"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("<li>")
		b.WriteString(it)
		b.WriteString("</li>")
	}
	return b.String()
}

// SendCompletionAlert emails the account owner about a concerning
// completed reference. Failures are logged, never propagated; outreach
// must not fail because email did.
func (n *NotificationService) SendCompletionAlert(user *models.User, candidate *models.Candidate, ref *models.Reference) {
	if n.sgClient == nil {
		utils.Logger.Warn("SendGrid client is nil, skipping completion alert")
		return
	}
	if user.Email == "" {
		utils.Logger.Warnf("User %s has no email, skipping completion alert", user.ID)
		return
	}

	score := 0
	if ref.Score != nil {
		score = *ref.Score
	}
	subject := fmt.Sprintf("Reference check alert: %s (score %d)", candidate.Name, score)

	plainText := fmt.Sprintf(
		"A completed reference call needs your attention.\n\nCandidate: %s\nReference: %s (%s)\nScore: %d/100\nRed flags: %s\nDiscrepancies: %s",
		candidate.Name, ref.Name, ref.Relationship, score,
		strings.Join(ref.RedFlags, "; "),
		strings.Join(ref.Discrepancies, "; "),
	)
	htmlBody := fmt.Sprintf(
		redFlagEmailHTML,
		subject,
		candidate.Name,
		ref.Name,
		ref.Relationship,
		score,
		htmlItems(ref.RedFlags),
		htmlItems(ref.Discrepancies),
		time.Now().UTC().Format(time.RFC1123Z),
	)

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(user.Email, user.Email)
	msg := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if n.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	if _, err := n.sgClient.Send(msg); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send completion alert to %s", user.Email)
		return
	}
	utils.Logger.Infof("Sent completion alert to %s for reference %s", user.Email, ref.ID)
}
