package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ core.Notifier = (*EmailNotifier)(nil)

// EmailSubject is the subject line of every alert mail.
const EmailSubject = "[ALERTE CEESP] Nouveaux avis"

// EmailOptions configures an EmailNotifier.
type EmailOptions struct {
	Addr     string // host:port
	User     string
	Password string
	From     string // Defaults to User
	To       []string
}

// sendFunc delivers one composed message.
type sendFunc func(ctx context.Context, from string, to []string, msg []byte) error

// EmailNotifier sends a multipart/alternative mail (text and HTML) over SMTP,
// upgrading to STARTTLS when the server offers it.
type EmailNotifier struct {
	opts EmailOptions
	send sendFunc
	now  func() time.Time
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(opts EmailOptions) *EmailNotifier {
	if opts.From == "" {
		opts.From = opts.User
	}
	n := &EmailNotifier{opts: opts, now: time.Now}
	n.send = n.deliver
	return n
}

// Notify implements core.Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, msg core.Notification) error {
	body, err := n.compose(ctx, msg)
	if err != nil {
		return err
	}
	if err := n.send(ctx, n.opts.From, n.opts.To, body); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// deliver runs one SMTP transaction on a connection bound to ctx. The dial
// honours cancellation and every read or write fails once ctx is done, so
// nothing is sent after Notify has returned.
func (n *EmailNotifier) deliver(ctx context.Context, from string, to []string, msg []byte) (err error) {
	host, _, err := net.SplitHostPort(n.opts.Addr)
	if err != nil {
		return fmt.Errorf("smtp address %q: %w", n.opts.Addr, err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.opts.Addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
	}()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if n.opts.User != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", n.opts.User, n.opts.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// compose builds the RFC 5322 message.
func (n *EmailNotifier) compose(ctx context.Context, msg core.Notification) ([]byte, error) {
	html, err := renderHTML(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ k, v string }{
		{"From", n.opts.From},
		{"To", strings.Join(n.opts.To, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", EmailSubject)},
		{"Date", n.now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@ceespwatch>", uuid.New().String())},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
	}
	var head bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&head, "%s: %s\r\n", h.k, h.v)
	}
	head.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", Text(msg)},
		{"text/html; charset=utf-8", html},
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(toCRLF(p.body))); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

func toCRLF(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
