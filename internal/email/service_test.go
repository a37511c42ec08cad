package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendUnknownTemplate(t *testing.T) {
	svc := NewService("localhost", "2525", "", "", "Amoret", "no-reply@amoret.test")

	err := svc.Send(context.Background(), "no-such-template", Message{To: "a@b.test"})
	assert.ErrorContains(t, err, "unknown email template")
}

func TestSendMissingRecipient(t *testing.T) {
	svc := NewService("localhost", "2525", "", "", "Amoret", "no-reply@amoret.test")

	err := svc.Send(context.Background(), TemplateWelcome, Message{})
	assert.ErrorContains(t, err, "missing recipient")
}

func TestTemplatesRender(t *testing.T) {
	subs := Substitutions{
		"display_name":        "Nora",
		"verify_email_link":   "http://frontend.test/verify-email?nonce=abc",
		"reset_password_link": "http://frontend.test/forget-password?nonce=abc",
		"pass_review_url":     "http://backend.test/v1/users/review?mode=pass&nonce=abc",
		"unpass_review_url":   "http://backend.test/v1/users/review?mode=unpass&nonce=abc",
		"data":                `{"email":"nora@example.com"}`,
	}

	for key, def := range templates {
		var buf bytes.Buffer
		assert.NoError(t, def.body.Execute(&buf, subs), "template %s", key)
		assert.NotZero(t, buf.Len(), "template %s rendered empty", key)
	}
}
