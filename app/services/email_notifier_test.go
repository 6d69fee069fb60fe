package services

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Mail/config"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type receivedMail struct {
	from     string
	to       []string
	data     string
	authUser string
}

type captureBackend struct {
	mu       sync.Mutex
	users    map[string]string
	received []receivedMail
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) mails() []receivedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMail(nil), b.received...)
}

type captureSession struct {
	backend *captureBackend
	current receivedMail
}

func (s *captureSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *captureSession) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if s.backend.users[username] != password {
			return smtp.ErrAuthFailed
		}
		s.current.authUser = username
		return nil
	}), nil
}

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)

	s.backend.mu.Lock()
	s.backend.received = append(s.backend.received, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *captureSession) Reset() {
	user := s.current.authUser
	s.current = receivedMail{authUser: user}
}

func (s *captureSession) Logout() error { return nil }

func startSMTPServer(t *testing.T, users map[string]string) (*captureBackend, string, int) {
	t.Helper()

	backend := &captureBackend{users: users}
	srv := smtp.NewServer(backend)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(l)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
		<-done
	})

	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return backend, host, port
}

func receiptOrder() models.Order {
	return models.Order{
		ID:             "ord-1",
		CampaignID:     12,
		RecipientCount: 15000,
		UnitRate:       80,
		TierLabel:      "bulk",
		TotalAmount:    1200000,
		Currency:       "TMN",
	}
}

func TestEmailNotifier_PaymentReceipt(t *testing.T) {
	backend, host, port := startSMTPServer(t, nil)

	n := NewEmailNotifier(config.EmailConfig{
		Host:      host,
		Port:      port,
		FromEmail: "billing@orochi-mail.local",
		FromName:  "Orochi Billing",
	}, zap.NewNop())

	require.NoError(t, n.PaymentReceipt(context.Background(), "buyer@example.com", receiptOrder()))

	mails := backend.mails()
	require.Len(t, mails, 1)
	got := mails[0]
	assert.Equal(t, "billing@orochi-mail.local", got.from)
	assert.Equal(t, []string{"buyer@example.com"}, got.to)
	assert.Contains(t, got.data, "Subject: Payment received for order ord-1\r\n")
	assert.Contains(t, got.data, "To: buyer@example.com\r\n")
	assert.Contains(t, got.data, `From: "Orochi Billing" <billing@orochi-mail.local>`)
	assert.Contains(t, got.data, "@orochi-mail.local>\r\n")
	assert.Contains(t, got.data, "1200000 TMN for campaign #12")
	assert.Contains(t, got.data, "Recipients: 15000")
	assert.Empty(t, got.authUser)
}

func TestEmailNotifier_AuthenticatesWithPlain(t *testing.T) {
	backend, host, port := startSMTPServer(t, map[string]string{"relay": "s3cret"})

	n := NewEmailNotifier(config.EmailConfig{
		Host:      host,
		Port:      port,
		Username:  "relay",
		Password:  "s3cret",
		FromEmail: "billing@orochi-mail.local",
	}, nil)

	require.NoError(t, n.PaymentReceipt(context.Background(), "buyer@example.com", receiptOrder()))

	mails := backend.mails()
	require.Len(t, mails, 1)
	assert.Equal(t, "relay", mails[0].authUser)
}

func TestEmailNotifier_Failures(t *testing.T) {
	backend, host, port := startSMTPServer(t, map[string]string{"relay": "s3cret"})

	t.Run("bad password", func(t *testing.T) {
		n := NewEmailNotifier(config.EmailConfig{
			Host: host, Port: port, Username: "relay", Password: "wrong", FromEmail: "billing@orochi-mail.local",
		}, nil)
		assert.Error(t, n.PaymentReceipt(context.Background(), "buyer@example.com", receiptOrder()))
	})

	t.Run("invalid recipient", func(t *testing.T) {
		n := NewEmailNotifier(config.EmailConfig{Host: host, Port: port, FromEmail: "billing@orochi-mail.local"}, nil)
		err := n.PaymentReceipt(context.Background(), "not an address", receiptOrder())
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "invalid email address"))
	})

	t.Run("cancelled context", func(t *testing.T) {
		n := NewEmailNotifier(config.EmailConfig{Host: host, Port: port, FromEmail: "billing@orochi-mail.local"}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, n.PaymentReceipt(ctx, "buyer@example.com", receiptOrder()), context.Canceled)
	})

	assert.Empty(t, backend.mails())
}
