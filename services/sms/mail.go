package sms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailDispatcher delivers codes through an email-to-SMS gateway which maps
// <phone>@<domain> onto a text message.
type MailDispatcher struct {
	config   *config.MailConfig
	domain   string
	signName string
	client   MailClient
	logger   *logging.Service
}

func NewMailClient(cfg *config.MailConfig) (*mail.Client, error) {
	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return client, nil
}

func NewMailDispatcher(cfg *config.MailConfig, domain, signName string, client MailClient, logger *logging.Service) (*MailDispatcher, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("SMS_MAIL_DOMAIN is required")
	}

	return &MailDispatcher{
		config:   cfg,
		domain:   domain,
		signName: signName,
		client:   client,
		logger:   logger,
	}, nil
}

func (d *MailDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.Phone == "" {
		return Receipt{}, ErrMissingRecipient
	}

	message, err := d.buildMessage(msg)
	if err != nil {
		return Receipt{}, err
	}

	if err := d.client.DialAndSendWithContext(ctx, message); err != nil {
		d.logger.Error("failed to send sms via mail gateway", logging.Phone(msg.Phone), zap.Error(err))
		return Receipt{}, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	receipt := Receipt{DispatchID: uuid.NewString()}
	d.logger.Info("sms dispatched via mail gateway", logging.Phone(msg.Phone), zap.String("dispatch_id", receipt.DispatchID))
	return receipt, nil
}

func (d *MailDispatcher) buildMessage(msg Message) (*mail.Msg, error) {
	message := mail.NewMsg()

	fromAddr := d.config.FromAddress
	if d.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", d.config.FromName, d.config.FromAddress)
	}
	if err := message.From(fromAddr); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	if err := message.To(msg.Phone + "@" + d.domain); err != nil {
		return nil, fmt.Errorf("failed to set TO address: %w", err)
	}

	message.Subject(msg.Template)
	message.SetBodyString(mail.TypeTextPlain, d.renderBody(msg))
	return message, nil
}

func (d *MailDispatcher) renderBody(msg Message) string {
	body := fmt.Sprintf("您的验证码是%s，%d分钟内有效。", msg.Code, msg.ExpiryMinutes)
	if d.signName != "" {
		body = "【" + d.signName + "】" + body
	}
	return body
}
