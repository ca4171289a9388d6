package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
)

// transport delivers a raw message to recipients over SMTP.
type transport struct {
	config    common.SMTPConfig
	tlsConfig *tls.Config
	logger    arbor.ILogger
}

func newTransport(config common.SMTPConfig, logger arbor.ILogger) *transport {
	return &transport{
		config:    config,
		tlsConfig: &tls.Config{ServerName: config.Host},
		logger:    logger,
	}
}

func (t *transport) addr() string {
	return net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
}

func (t *transport) auth() sasl.Client {
	if t.config.Username == "" {
		return nil
	}
	return sasl.NewPlainClient("", t.config.Username, t.config.Password)
}

// send delivers msg. With use_tls it dials implicit TLS and, only if that
// connection cannot be established, retries on a plaintext connection
// upgraded with STARTTLS. Once a session is open it is never retried.
func (t *transport) send(ctx context.Context, from string, to []string, msg []byte) error {
	if t.config.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout.Duration)
		defer cancel()
	}

	if !t.config.UseTLS {
		conn, err := t.dial(ctx)
		if err != nil {
			return err
		}
		return t.deliver(ctx, conn, false, from, to, msg)
	}

	conn, tlsErr := t.dialTLS(ctx)
	if tlsErr == nil {
		return t.deliver(ctx, conn, false, from, to, msg)
	}
	if ctx.Err() != nil {
		return tlsErr
	}

	// Submission ports (587) speak plaintext first
	t.logger.Debug().
		Err(tlsErr).
		Str("addr", t.addr()).
		Msg("Implicit TLS unavailable, trying STARTTLS")

	conn, err := t.dial(ctx)
	if err == nil {
		err = t.deliver(ctx, conn, true, from, to, msg)
	}
	if err != nil {
		return fmt.Errorf("implicit TLS failed (%v), STARTTLS failed: %w", tlsErr, err)
	}
	return nil
}

// dialTLS connects and completes the TLS handshake (port 465 style)
func (t *transport) dialTLS(ctx context.Context) (net.Conn, error) {
	dialer := &tls.Dialer{Config: t.tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server over TLS: %w", err)
	}
	return conn, nil
}

func (t *transport) dial(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	return conn, nil
}

// deliver runs the SMTP conversation on conn and closes it.
func (t *transport) deliver(ctx context.Context, conn net.Conn, startTLS bool, from string, to []string, msg []byte) error {
	client := smtp.NewClient(conn)
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		client.CommandTimeout = remaining
		client.SubmissionTimeout = remaining
	}
	// Closing the connection unblocks any pending command
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if startTLS {
		if err := client.StartTLS(t.tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if auth := t.auth(); auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("failed to set mail recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The server has accepted the message; a failed QUIT does not undo that
	if err := client.Quit(); err != nil {
		t.logger.Warn().
			Err(err).
			Str("addr", t.addr()).
			Msg("SMTP QUIT failed after message was accepted")
	}
	return nil
}
