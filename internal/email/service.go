// Package email dispatches templated notifications. Sends are fire-and-forget
// relative to the workflows that trigger them: a failed send is logged, never
// rolled back into the transaction that minted the message.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
)

// Template keys understood by Send.
const (
	TemplateWelcome        = "welcome"
	TemplateVerifyEmail    = "verify-email"
	TemplateForgetPassword = "forget-password"
	TemplateReview         = "review"
)

// Substitutions are the per-message values folded into a template.
type Substitutions map[string]string

// Message addresses one notification.
type Message struct {
	To            string
	ToName        string
	Substitutions Substitutions
}

// Sender is the notification collaborator contract.
type Sender interface {
	Send(ctx context.Context, templateKey string, msg Message) error
}

type templateDef struct {
	subject string
	body    *template.Template
}

var templates = map[string]templateDef{
	TemplateWelcome: {
		subject: "Welcome to Amoret",
		body: template.Must(template.New(TemplateWelcome).Parse(
			`<p>Hi {{.display_name}},</p><p>Welcome aboard! Your profile is being reviewed and you will hear from us soon.</p>`)),
	},
	TemplateVerifyEmail: {
		subject: "Verify your email address",
		body: template.Must(template.New(TemplateVerifyEmail).Parse(
			`<p>Hi {{.display_name}},</p><p>Please confirm your email address within 15 minutes:</p><p><a href="{{.verify_email_link}}">Verify email</a></p>`)),
	},
	TemplateForgetPassword: {
		subject: "Reset your password",
		body: template.Must(template.New(TemplateForgetPassword).Parse(
			`<p>Hi {{.display_name}},</p><p>Use the link below to choose a new password:</p><p><a href="{{.reset_password_link}}">Reset password</a></p>`)),
	},
	TemplateReview: {
		subject: "New profile awaiting review",
		body: template.Must(template.New(TemplateReview).Parse(
			`<p>A new profile signed up:</p><pre>{{.data}}</pre><p><a href="{{.pass_review_url}}">Approve</a> | <a href="{{.unpass_review_url}}">Reject</a></p>`)),
	},
}

// Service sends notifications over SMTP.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromName     string
	fromEmail    string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromName, fromEmail string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromName:     fromName,
		fromEmail:    fromEmail,
	}
}

// Send renders the template for templateKey and delivers it to msg.To.
// Designed to be called in a goroutine after the triggering transaction
// committed.
func (s *Service) Send(ctx context.Context, templateKey string, msg Message) error {
	def, ok := templates[templateKey]
	if !ok {
		return fmt.Errorf("unknown email template %q", templateKey)
	}
	if msg.To == "" {
		return fmt.Errorf("email template %q: missing recipient", templateKey)
	}

	var body bytes.Buffer
	if err := def.body.Execute(&body, msg.Substitutions); err != nil {
		return fmt.Errorf("render email template %q: %w", templateKey, err)
	}

	var wire bytes.Buffer
	fmt.Fprintf(&wire, "From: %s <%s>\r\n", s.fromName, s.fromEmail)
	fmt.Fprintf(&wire, "To: %s\r\n", msg.To)
	fmt.Fprintf(&wire, "Subject: %s\r\n", def.subject)
	wire.WriteString("MIME-Version: 1.0\r\n")
	wire.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	wire.WriteString("\r\n")
	wire.Write(body.Bytes())

	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	addr := s.smtpHost + ":" + s.smtpPort

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.fromEmail, []string{msg.To}, wire.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email %q to %s: %w", templateKey, msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
