// Package mail renders and delivers account verification emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is a rendered outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const verificationSubject = "Email Verification"

var verificationTemplate = template.Must(template.New("verification").Parse(
	`<p>Please verify your email by clicking the following link:</p>
<a href="{{.Link}}">{{.Link}}</a>`))

// VerificationMailer builds verification links and hands them to a Sender.
type VerificationMailer struct {
	sender    Sender
	clientURL string
}

// NewVerificationMailer creates a mailer whose links point at clientURL.
func NewVerificationMailer(sender Sender, clientURL string) *VerificationMailer {
	return &VerificationMailer{sender: sender, clientURL: strings.TrimRight(clientURL, "/")}
}

// Link returns the client URL a user opens to verify with token.
func (m *VerificationMailer) Link(token string) string {
	return m.clientURL + "/verify-email?token=" + url.QueryEscape(token)
}

// Compose renders the verification message for to.
func (m *VerificationMailer) Compose(to, token string) (Message, error) {
	var body bytes.Buffer
	if err := verificationTemplate.Execute(&body, struct{ Link string }{Link: m.Link(token)}); err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}
	return Message{To: to, Subject: verificationSubject, HTML: body.String()}, nil
}

// SendVerification renders and sends the verification email for token.
func (m *VerificationMailer) SendVerification(ctx context.Context, to, token string) error {
	msg, err := m.Compose(to, token)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}
