package channels

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"

	"github.com/tindale/reeve/internal/config"
)

// smtpDialTimeout bounds SMTP connection establishment.
const smtpDialTimeout = 30 * time.Second

// Email is the outbound-only email channel: responses become MIME
// messages with text/plain and text/html alternatives, delivered over
// SMTP. There is no inbound path; scheduled tasks use it to push
// reports to the configured recipient.
type Email struct {
	logger *slog.Logger
	cfg    config.EmailConfig
	md     goldmark.Markdown
}

// NewEmail creates the email channel.
func NewEmail(cfg config.EmailConfig, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	return &Email{
		logger: logger.With("channel", "email"),
		cfg:    cfg,
		md:     goldmark.New(),
	}
}

func (e *Email) Name() string { return "email" }

// SendResponse composes and delivers one message to the configured
// recipient. The session id becomes part of the subject so replies can
// be threaded by eye.
func (e *Email) SendResponse(sessionID, text string) error {
	subject := "Reeve"
	if sessionID != "" {
		subject = fmt.Sprintf("Reeve [%s]", sessionID)
	}

	msg, err := e.compose(subject, text)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := e.send(ctx, msg); err != nil {
		return err
	}
	e.logger.Info("email sent", "to", e.cfg.To, "session_id", sessionID, "bytes", len(msg))
	return nil
}

// compose builds a complete RFC 5322 message with the body as markdown
// rendered into multipart/alternative text and HTML parts.
func (e *Email) compose(subject, body string) ([]byte, error) {
	var buf bytes.Buffer
	var h mail.Header

	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(subject)

	from, err := mail.ParseAddress(e.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", e.cfg.From, err)
	}
	to, err := mail.ParseAddress(e.cfg.To)
	if err != nil {
		return nil, fmt.Errorf("parse to address %q: %w", e.cfg.To, err)
	}
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return nil, fmt.Errorf("create plain part: %w", err)
	}
	if _, err := io.WriteString(pw, markdownToPlain(body)); err != nil {
		return nil, fmt.Errorf("write plain part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close plain part: %w", err)
	}

	var html bytes.Buffer
	if err := e.md.Convert([]byte(body), &html); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	hw, err := tw.CreatePart(hh)
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := html.WriteTo(hw); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}
	if err := hw.Close(); err != nil {
		return nil, fmt.Errorf("close html part: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

// send delivers msg over SMTP. Port 465 means implicit TLS; anything
// else connects plain and upgrades via STARTTLS. Each call uses its
// own ephemeral connection.
func (e *Email) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.SMTPHost, fmt.Sprintf("%d", e.cfg.SMTPPort))

	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var client *smtp.Client
	if e.cfg.SMTPPort == 465 {
		tlsCfg := &tls.Config{ServerName: e.cfg.SMTPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("dial SMTPS %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, e.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial SMTP %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, e.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if e.cfg.SMTPPort != 465 {
		tlsCfg := &tls.Config{ServerName: e.cfg.SMTPHost}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}
	if e.cfg.Username != "" && e.cfg.Password != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	fromAddr, err := mail.ParseAddress(e.cfg.From)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}
	toAddr, err := mail.ParseAddress(e.cfg.To)
	if err != nil {
		return fmt.Errorf("parse to address: %w", err)
	}
	if err := client.Mail(fromAddr.Address); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(toAddr.Address); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmph    = regexp.MustCompile(`(\*\*|__|\*|_|` + "`" + `)`)
)

// markdownToPlain strips markdown syntax for the text/plain part.
// Crude but readable; the HTML part carries the real formatting.
func markdownToPlain(body string) string {
	out := mdHeading.ReplaceAllString(body, "")
	out = mdLink.ReplaceAllString(out, "$1")
	out = mdEmph.ReplaceAllString(out, "")
	return strings.TrimSpace(out) + "\n"
}
