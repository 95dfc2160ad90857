package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"frontdesk_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

const (
	subjectOrphanedResource = "Orphaned telephony resource needs manual reconciliation"
	subjectRevenueEvent     = "New revenue event attributed"
)

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendOrphanedResourceEmail alerts the operator about a provider resource
// left behind after a failed compensation.
func (s *SMTPSender) SendOrphanedResourceEmail(ctx context.Context, toEmail, provider, resourceID, phoneNumber, tenantID, releaseError string) error {
	body := fmt.Sprintf(`<h2>Orphaned telephony resource</h2>
<p>A number acquisition could not be rolled back and is still held at the provider.</p>
<ul>
<li>Provider: %s</li>
<li>Resource: %s</li>
<li>Number: %s</li>
<li>Tenant: %s</li>
<li>Release error: %s</li>
</ul>
<p>Release it manually in the provider dashboard if the reconcile task keeps failing.</p>`,
		html.EscapeString(provider), html.EscapeString(resourceID),
		html.EscapeString(phoneNumber), html.EscapeString(tenantID),
		html.EscapeString(releaseError))

	return s.send(ctx, toEmail, subjectOrphanedResource, body)
}

// SendRevenueEventEmail notifies the operator of a newly attributed success fee.
func (s *SMTPSender) SendRevenueEventEmail(ctx context.Context, toEmail, tenantID, callID, feeAmount string) error {
	body := fmt.Sprintf(`<h2>Revenue event attributed</h2>
<ul>
<li>Tenant: %s</li>
<li>Call: %s</li>
<li>Fee: %s</li>
</ul>`,
		html.EscapeString(tenantID), html.EscapeString(callID), html.EscapeString(feeAmount))

	return s.send(ctx, toEmail, subjectRevenueEvent, body)
}

var _ Sender = (*SMTPSender)(nil)
