package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/model"
	"github.com/adythan1/Tax-Returns/pkg/logger"
)

// Notification is what staff are told about one submission
type Notification struct {
	Folder      string
	Link        string
	Metadata    *model.Metadata
	FileLinks   map[string]string // stored file name -> direct URL, when the backend offers one
	SubmittedAt time.Time
}

// Notifier delivers a submission notification to staff
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// SendFunc delivers one message. It has the shape of smtp.SendMail plus a
// context bounding the whole exchange.
type SendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier emails the admin address through an SMTP relay (STARTTLS)
type SMTPNotifier struct {
	cfg  *config.EmailConfig
	send SendFunc
}

func NewSMTPNotifier(cfg *config.EmailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: SendMail}
}

// WithSender replaces the mail transport, e.g. with a recorder in tests
func (s *SMTPNotifier) WithSender(send SendFunc) *SMTPNotifier {
	s.send = send
	return s
}

func (s *SMTPNotifier) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SMTPNotifier) auth() smtp.Auth {
	if s.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
}

func (s *SMTPNotifier) Notify(ctx context.Context, n *Notification) error {
	subject := fmt.Sprintf("New Portal Submission - %s %s", n.Metadata.FirstName, n.Metadata.LastName)
	body, err := RenderSubmissionEmail(n)
	if err != nil {
		return err
	}
	return s.deliver(ctx, subject, body)
}

// SendTest sends a short message to the admin address to verify settings
func (s *SMTPNotifier) SendTest(ctx context.Context) error {
	body := fmt.Sprintf("<h2>Test Email</h2><p>The portal email configuration is working.</p><p>Sent at: %s</p>",
		template.HTMLEscapeString(time.Now().Format(time.RFC1123)))
	return s.deliver(ctx, "Test Email from the Tax Returns portal", []byte(body))
}

func (s *SMTPNotifier) deliver(ctx context.Context, subject string, body []byte) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", s.cfg.AdminAddress)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)

	// The sender runs on its own goroutine so a transport that ignores ctx
	// cannot hold the caller past the deadline.
	done := make(chan error, 1)
	go func() {
		done <- s.send(ctx, s.addr(), s.auth(), s.cfg.From, []string{s.cfg.AdminAddress}, msg.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

// SendMail is smtp.SendMail with the dial and every later exchange bounded
// by ctx. STARTTLS is used when the server offers it.
func SendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogNotifier only logs; used when no mail relay is configured
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n *Notification) error {
	logger.Info(ctx, "submission notification (email disabled)",
		"folder", n.Folder,
		"name", n.Metadata.FirstName+" "+n.Metadata.LastName,
		"files", n.Metadata.FilesCount,
		"link", n.Link,
	)
	return nil
}

// Dispatcher runs notifications in the background. Failures are logged,
// never returned to the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout}
}

// Dispatch sends n asynchronously. The request context's values are kept
// for logging but its cancellation is not.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, n); err != nil {
			logger.Error(ctx, "notification failed", "error", &NotificationError{Folder: n.Folder, Err: err})
			return
		}
		logger.Info(ctx, "notification sent", "folder", n.Folder)
	}()
}

// Wait blocks until every dispatched notification has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
