package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/phoneauth"
	"go.uber.org/zap"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Kinds used only by the transport for failures outside the auth flow.
const (
	KindUnauthorized = "Unauthorized"
	KindNotFound     = "NotFound"
)

type ErrorResponse struct {
	Status  string `json:"status" example:"error"`
	Kind    string `json:"kind" example:"CodeInvalid"`
	Message string `json:"message"`
}

type SendCodeRequest struct {
	Phone string `json:"phone" doc:"domestic mobile number" example:"13800138000"`
	Scene string `json:"scene,omitempty" enum:"login|register|reset_password|bind_phone"`
}

type SendCodeResponse struct {
	Status     string `json:"status" example:"ok"`
	DispatchID string `json:"dispatchId"`
	ExpiresAt  int64  `json:"expiresAt" doc:"epoch milliseconds"`
	DebugCode  string `json:"debugCode,omitempty" doc:"only present in debug mode when dispatch failed"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone" example:"13800138000"`
	Code  string `json:"code" example:"123456"`
	Scene string `json:"scene,omitempty" enum:"login|register|reset_password|bind_phone"`
}

type OneClickRequest struct {
	AccessToken     string `json:"accessToken"`
	CarrierOpaqueID string `json:"carrierOpaqueId,omitempty"`
}

type ProfileResponse struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Phone    string `json:"phone"`
}

type LoginResponse struct {
	Status         string          `json:"status" example:"ok"`
	Token          string          `json:"token"`
	TokenExpiresAt int64           `json:"tokenExpiresAt" doc:"epoch milliseconds"`
	UserID         string          `json:"userId"`
	IsNewUser      bool            `json:"isNewUser"`
	Profile        ProfileResponse `json:"profile"`
}

type CheckTokenResponse struct {
	Status      string `json:"status" example:"ok"`
	UserID      string `json:"userId"`
	Phone       string `json:"phone"`
	CreatedAt   int64  `json:"createdAt" doc:"epoch milliseconds"`
	LastLoginAt *int64 `json:"lastLoginAt,omitempty" doc:"epoch milliseconds"`
}

type StatusResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message,omitempty"`
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func newLoginResponse(result *phoneauth.LoginResult) LoginResponse {
	return LoginResponse{
		Status:         StatusOK,
		Token:          result.Token,
		TokenExpiresAt: millis(result.TokenExpiresAt),
		UserID:         result.UserID,
		IsNewUser:      result.IsNewUser,
		Profile: ProfileResponse{
			Nickname: result.Profile.Nickname,
			Avatar:   result.Profile.Avatar,
			Phone:    result.Profile.Phone,
		},
	}
}

// StatusForKind maps a flow error kind onto its HTTP status.
func StatusForKind(kind phoneauth.Kind) int {
	switch kind {
	case phoneauth.KindInvalidPhoneFormat, phoneauth.KindInvalidInput:
		return http.StatusBadRequest
	case phoneauth.KindRateLimited:
		return http.StatusTooManyRequests
	case phoneauth.KindDispatchFailed:
		return http.StatusBadGateway
	case phoneauth.KindCodeInvalid, phoneauth.KindCodeExpired, phoneauth.KindCarrierVerificationFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(phoneauth.KindInvalidInput)
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusTooManyRequests:
		return string(phoneauth.KindRateLimited)
	default:
		return string(phoneauth.KindInternalError)
	}
}

func errorJSON(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, ErrorResponse{Status: StatusError, Kind: kind, Message: message})
}

// flowError renders an error returned by the phone auth service. Raw causes
// never reach the client.
func flowError(c echo.Context, err error) error {
	var authErr *phoneauth.Error
	if !errors.As(err, &authErr) {
		return errorJSON(c, http.StatusInternalServerError, string(phoneauth.KindInternalError), "internal server error")
	}
	return errorJSON(c, StatusForKind(authErr.Kind), string(authErr.Kind), authErr.Message)
}

// ErrorHandler renders every unhandled error in the response envelope.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled request error",
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = errorJSON(c, status, kindForStatus(status), message)
		}
		if err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}

func RateLimitedResponse(c echo.Context) error {
	return errorJSON(c, http.StatusTooManyRequests, string(phoneauth.KindRateLimited), "too many requests, please retry later")
}
