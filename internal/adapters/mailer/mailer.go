// Package mailer sends claim decision e-mails over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"midtown_book/internal/adapters/observability"
	"midtown_book/internal/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the public site used to build listing links.
	BaseURL string
}

type Mailer struct {
	from    string
	baseURL string
	send    func(m ...*gomail.Message) error
}

var _ domain.Notifier = (*Mailer)(nil)

func New(cfg Config) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &Mailer{from: cfg.From, baseURL: cfg.BaseURL, send: d.DialAndSend}
}

// NewWithSender delivers through s instead of dialing SMTP.
func NewWithSender(cfg Config, s gomail.Sender) *Mailer {
	return &Mailer{from: cfg.From, baseURL: cfg.BaseURL, send: func(m ...*gomail.Message) error { return gomail.Send(s, m...) }}
}

// ClaimResolved tells the claimant whether their claim was approved.
// Claims without an e-mail address are skipped.
func (m *Mailer) ClaimResolved(ctx context.Context, c domain.Claim, b domain.Business) error {
	if c.Email == nil || *c.Email == "" {
		log.Debug().Int64("claim", c.ID).Msg("claim has no e-mail; notification skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := claimMessage(c, b, m.baseURL)
	msg := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", *c.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	start := time.Now()
	err := m.send(msg)
	status := 250
	if err != nil {
		status = 554
	}
	observability.ObserveExternal("smtp", "claim_resolved", status, time.Since(start))
	if err != nil {
		return fmt.Errorf("send claim e-mail: %w", err)
	}
	return nil
}

func claimMessage(c domain.Claim, b domain.Business, baseURL string) (string, string) {
	name := html.EscapeString(b.Name)
	link := html.EscapeString(fmt.Sprintf("%s/business/%s", baseURL, b.Slug))
	if c.Status == domain.ClaimApproved {
		return fmt.Sprintf("Your claim for %s was approved", b.Name), fmt.Sprintf(`
<h2>You now manage %s</h2>
<p>Your ownership claim has been verified. You can respond to reviews, post deals and publish events from your dashboard.</p>
<p><a href="%s">View your listing</a></p>
`, name, link)
	}
	return fmt.Sprintf("Your claim for %s was not approved", b.Name), fmt.Sprintf(`
<h2>We could not verify your claim for %s</h2>
<p>The documents provided did not let us confirm ownership. You may submit a new claim with additional proof.</p>
<p><a href="%s">View the listing</a></p>
`, name, link)
}
