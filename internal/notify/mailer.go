// Package notify sends transactional mail.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"academy-storefront/internal/config"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	To      []mail.Address
	Bcc     []mail.Address
	Subject string
	Text    string
	HTML    string
}

func (m *Message) HasRecipients() bool { return len(m.To) > 0 }
func (m *Message) HasContent() bool    { return m.Text != "" || m.HTML != "" }

type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// NewMailer returns the sendgrid mailer when an API key is configured and a
// console mailer writing to w otherwise.
func NewMailer(cfg *config.Sendgrid, appName string, w io.Writer) Mailer {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}
	if cfg.APIKey == "" {
		return NewConsoleMailer(w, from, appName)
	}
	return NewSendgridMailer(cfg.APIKey, from, appName)
}

type sendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	host       string
}

func NewSendgridMailer(key string, from mail.Address, appName string) Mailer {
	return &sendgridMailer{
		key:        key,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + appName + "] ",
		host:       sendgridHost,
	}
}

func (s *sendgridMailer) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgmail.NewEmail(bcc.Name, bcc.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	// text/plain must come before text/html
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *sendgridMailer) Send(ctx context.Context, msg *Message) error {
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

type consoleMailer struct {
	mu         sync.Mutex
	w          io.Writer
	from       mail.Address
	subjPrefix string
}

// NewConsoleMailer prints messages instead of sending them.
func NewConsoleMailer(w io.Writer, from mail.Address, appName string) Mailer {
	return &consoleMailer{w: w, from: from, subjPrefix: "[" + appName + "] "}
}

func (c *consoleMailer) Send(_ context.Context, msg *Message) error {
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", c.from.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", c.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.Text)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, body.String())
	return err
}

func joinAddresses(addrs []mail.Address) string {
	s := make([]string, len(addrs))
	for i, a := range addrs {
		s[i] = a.String()
	}
	return strings.Join(s, ", ")
}
