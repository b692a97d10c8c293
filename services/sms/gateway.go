package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

type gatewayRequest struct {
	Phone      string            `json:"phone"`
	TemplateID string            `json:"templateId"`
	SignName   string            `json:"signName,omitempty"`
	Data       map[string]string `json:"data"`
}

type gatewayResponse struct {
	ErrCode int    `json:"errCode"`
	ErrMsg  string `json:"errMsg"`
	SmsID   string `json:"smsId"`
}

// GatewayDispatcher posts messages to an HTTP SMS provider. The provider
// answers with errCode 0 on success.
type GatewayDispatcher struct {
	url      string
	apiKey   string
	signName string
	client   *http.Client
	logger   *logging.Service
}

func NewGatewayDispatcher(url, apiKey, signName string, client *http.Client, logger *logging.Service) *GatewayDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewayDispatcher{
		url:      url,
		apiKey:   apiKey,
		signName: signName,
		client:   client,
		logger:   logger,
	}
}

func (d *GatewayDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.Phone == "" {
		return Receipt{}, ErrMissingRecipient
	}

	body, err := json.Marshal(gatewayRequest{
		Phone:      msg.Phone,
		TemplateID: msg.Template,
		SignName:   d.signName,
		Data: map[string]string{
			"code":   msg.Code,
			"expiry": strconv.Itoa(msg.ExpiryMinutes),
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("failed to reach sms gateway", logging.Phone(msg.Phone), zap.Error(err))
		return Receipt{}, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: failed to read gateway response: %w", ErrDispatchFailed, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return Receipt{}, fmt.Errorf("%w: gateway returned status %d", ErrDispatchFailed, resp.StatusCode)
	}

	var result gatewayResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return Receipt{}, fmt.Errorf("%w: malformed gateway response: %w", ErrDispatchFailed, err)
	}

	if result.ErrCode != 0 {
		msgText := result.ErrMsg
		if msgText == "" {
			msgText = "unknown provider error"
		}
		d.logger.Warn("sms gateway rejected message",
			logging.Phone(msg.Phone),
			zap.Int("err_code", result.ErrCode),
			zap.String("err_msg", result.ErrMsg))
		return Receipt{}, fmt.Errorf("%w: %s (code %d)", ErrDispatchFailed, msgText, result.ErrCode)
	}

	d.logger.Info("sms dispatched via gateway", logging.Phone(msg.Phone), zap.String("dispatch_id", result.SmsID))
	return Receipt{DispatchID: result.SmsID}, nil
}
