package mailer

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"

	"github.com/loadxpress/loadxpress/internal/config"
	"github.com/loadxpress/loadxpress/internal/logger"
)

// Mailer dispatches account lifecycle emails. Delivery is
// fire-and-forget from the state machine's perspective: failures are
// logged by the caller, never retried, and never roll anything back.
type Mailer struct {
	cfg    *config.EmailConfig
	site   string
	logger logger.Logger
}

// New builds an SMTP mailer. An incomplete SMTP config turns Send
// calls into logged no-ops so local development works without a
// relay.
func New(cfg *config.EmailConfig, siteURL string, log logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, site: strings.TrimRight(siteURL, "/"), logger: log}
}

func (m *Mailer) configured() bool {
	return m.cfg.SMTPHost != "" && m.cfg.SMTPUser != "" && m.cfg.FromEmail != ""
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.configured() {
		m.logger.Warn("email config missing, skip dispatch", "to", to, "subject", subject)
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return goerrors.New("empty email recipient", goerrors.CategoryValidation)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("LoadXpress <%s>", m.cfg.FromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPass)
	if err := d.DialAndSend(msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email")
	}

	m.logger.Info("email dispatched", "to", to, "subject", subject)
	return nil
}

// SendActivationEmail mails the single use activation link.
func (m *Mailer) SendActivationEmail(_ context.Context, to, token string) error {
	link := fmt.Sprintf("%s/auth/activate?token=%s", m.site, token)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f8fafc; color: #1e293b;">
  <div style="max-width: 600px; margin: 0 auto; padding: 24px; background: #ffffff; border-radius: 16px;">
    <h1 style="font-size: 24px; color: #0f172a;">Welcome to the future of payments!</h1>
    <p>We're excited to have you join LoadXpress. Your account has been created with the email
       <strong style="color: #0f172a;">%s</strong>.</p>
    <p>Before you can start funding your wallet and buying airtime or data, verify your email
       address by clicking the button below.</p>
    <p style="text-align: center; padding: 20px 0;">
      <a href="%s" style="background: #6366f1; color: #ffffff; text-decoration: none; padding: 16px 32px; border-radius: 12px; font-weight: 700;">Activate Account</a>
    </p>
    <p style="font-size: 14px; border-top: 1px solid #e2e8f0; padding-top: 20px;">
      <strong>Security tip:</strong> if you didn't create this account, ignore this email or
      contact support.</p>
  </div>
</body>
</html>`, to, link)

	return m.send(to, "Verify Your Email Address", body)
}

// SendOTPEmail mails the 6 digit login code.
func (m *Mailer) SendOTPEmail(_ context.Context, to, code string) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f8fafc; color: #1e293b;">
  <div style="max-width: 520px; margin: 0 auto; padding: 24px; background: #ffffff; border-radius: 16px;">
    <h1 style="font-size: 22px; color: #0f172a;">Your LoadXpress login code</h1>
    <p>Enter this code to finish signing in:</p>
    <div style="font-size: 32px; font-weight: 800; letter-spacing: 6px; color: #0f172a;">%s</div>
    <p style="font-size: 14px;">The code expires in 5 minutes. If you didn't try to sign in,
       you can safely ignore this email.</p>
  </div>
</body>
</html>`, code)

	return m.send(to, "Your LoadXpress Login Code", body)
}
