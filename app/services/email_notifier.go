// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/config"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmailNotifier sends customer notifications through an SMTP relay
type EmailNotifier struct {
	addr     string
	domain   string
	username string
	password string
	from     mail.Address
	logger   *zap.Logger
}

// NewEmailNotifier creates a notifier for the relay described by cfg
func NewEmailNotifier(cfg config.EmailConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	domain := "localhost"
	if _, host, ok := strings.Cut(cfg.FromEmail, "@"); ok && host != "" {
		domain = host
	}

	return &EmailNotifier{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		domain:   domain,
		username: cfg.Username,
		password: cfg.Password,
		from:     mail.Address{Name: cfg.FromName, Address: cfg.FromEmail},
		logger:   logger,
	}
}

// PaymentReceipt mails the customer a receipt for a completed order
func (n *EmailNotifier) PaymentReceipt(ctx context.Context, email string, order models.Order) error {
	to, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address %q: %w", email, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Payment received for order %s", order.ID)
	body := fmt.Sprintf(
		"We received your payment of %d %s for campaign #%d.\r\n\r\n"+
			"Order: %s\r\nRecipients: %d\r\nRate: %d %s per recipient (%s)\r\n\r\n"+
			"Your campaign is now being processed.\r\n",
		order.TotalAmount, order.Currency, order.CampaignID,
		order.ID, order.RecipientCount, order.UnitRate, order.Currency, order.TierLabel,
	)

	if err := n.send(to.Address, subject, body); err != nil {
		n.logger.Error("failed to send payment receipt",
			zap.String("order_id", order.ID),
			zap.String("request_id", utils.RequestIDFrom(ctx)),
			zap.Error(err),
		)
		return err
	}

	n.logger.Info("payment receipt sent", zap.String("order_id", order.ID))
	return nil
}

func (n *EmailNotifier) send(to, subject, body string) error {
	var auth sasl.Client
	if n.username != "" {
		auth = sasl.NewPlainClient("", n.username, n.password)
	}

	msg := n.compose(to, subject, body)
	if err := smtp.SendMail(n.addr, auth, n.from.Address, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.addr, err)
	}
	return nil
}

func (n *EmailNotifier) compose(to, subject, body string) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	header("From", n.from.String())
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", utils.UTCNow().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), n.domain))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(body)

	return b.Bytes()
}

var _ businessflow.Notifier = (*EmailNotifier)(nil)
