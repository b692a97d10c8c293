package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

var (
	ErrDispatchFailed   = errors.New("sms dispatch failed")
	ErrUnknownProvider  = errors.New("unknown sms provider")
	ErrMissingRecipient = errors.New("sms recipient is required")
)

const (
	TemplateLogin         = "SMS_LOGIN_TEMPLATE"
	TemplateRegister      = "SMS_REGISTER_TEMPLATE"
	TemplateResetPassword = "SMS_RESET_PASSWORD_TEMPLATE"
	TemplateBindPhone     = "SMS_BIND_PHONE_TEMPLATE"
)

var sceneTemplates = map[string]string{
	"login":          TemplateLogin,
	"register":       TemplateRegister,
	"reset_password": TemplateResetPassword,
	"bind_phone":     TemplateBindPhone,
}

// TemplateForScene returns the provider template for a scene, falling back
// to the login template.
func TemplateForScene(scene string) string {
	if template, ok := sceneTemplates[scene]; ok {
		return template
	}
	return TemplateLogin
}

type Message struct {
	Phone         string
	Template      string
	Code          string
	ExpiryMinutes int
}

type Receipt struct {
	DispatchID string
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// LogDispatcher writes codes to the log instead of delivering them.
type LogDispatcher struct {
	logger *logging.Service
}

func NewLogDispatcher(logger *logging.Service) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.Phone == "" {
		return Receipt{}, ErrMissingRecipient
	}

	receipt := Receipt{DispatchID: uuid.NewString()}
	d.logger.Info("sms dispatched to log",
		logging.Phone(msg.Phone),
		zap.String("template", msg.Template),
		zap.String("code", msg.Code),
		zap.Int("expiry_minutes", msg.ExpiryMinutes),
		zap.String("dispatch_id", receipt.DispatchID))
	return receipt, nil
}

type timeoutDispatcher struct {
	timeout time.Duration
	next    Dispatcher
}

// WithTimeout bounds every Send on next by d. A non-positive d disables the bound.
func WithTimeout(d time.Duration, next Dispatcher) Dispatcher {
	if d <= 0 {
		return next
	}
	return &timeoutDispatcher{timeout: d, next: next}
}

func (t *timeoutDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		receipt Receipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		receipt, err := t.next.Send(ctx, msg)
		done <- result{receipt: receipt, err: err}
	}()

	select {
	case r := <-done:
		return r.receipt, r.err
	case <-ctx.Done():
		return Receipt{}, fmt.Errorf("%w: %w", ErrDispatchFailed, ctx.Err())
	}
}
