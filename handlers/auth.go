package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	jwtmiddleware "github.com/tech-arch1tect/phoneauth/middleware/jwt"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/phoneauth"
	"go.uber.org/zap"
)

type Authenticator interface {
	RequestCode(ctx context.Context, in phoneauth.RequestCodeInput) (*phoneauth.RequestCodeResult, error)
	VerifyCode(ctx context.Context, in phoneauth.VerifyCodeInput) (*phoneauth.LoginResult, error)
	LoginWithCarrierCredential(ctx context.Context, in phoneauth.CarrierLoginInput) (*phoneauth.LoginResult, error)
}

type AuthHandler struct {
	auth   Authenticator
	users  identity.Store
	tokens *jwt.Service
	logger *logging.Service
}

func NewAuthHandler(auth Authenticator, users identity.Store, tokens *jwt.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *AuthHandler) SendCode(c echo.Context) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, string(phoneauth.KindInvalidInput), "invalid request body")
	}

	result, err := h.auth.RequestCode(c.Request().Context(), phoneauth.RequestCodeInput{
		Phone:    req.Phone,
		Scene:    req.Scene,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return flowError(c, err)
	}

	return c.JSON(http.StatusOK, SendCodeResponse{
		Status:     StatusOK,
		DispatchID: result.DispatchID,
		ExpiresAt:  millis(result.ExpiresAt),
		DebugCode:  result.DebugCode,
	})
}

func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, string(phoneauth.KindInvalidInput), "invalid request body")
	}

	result, err := h.auth.VerifyCode(c.Request().Context(), phoneauth.VerifyCodeInput{
		Phone:     req.Phone,
		Code:      req.Code,
		Scene:     req.Scene,
		ClientIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return flowError(c, err)
	}

	return c.JSON(http.StatusOK, newLoginResponse(result))
}

func (h *AuthHandler) OneClick(c echo.Context) error {
	var req OneClickRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, string(phoneauth.KindInvalidInput), "invalid request body")
	}

	result, err := h.auth.LoginWithCarrierCredential(c.Request().Context(), phoneauth.CarrierLoginInput{
		AccessToken: req.AccessToken,
		OpenID:      req.CarrierOpaqueID,
		ClientIP:    c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
	})
	if err != nil {
		return flowError(c, err)
	}

	return c.JSON(http.StatusOK, newLoginResponse(result))
}

// CheckToken reports the identity behind a valid bearer token.
func (h *AuthHandler) CheckToken(c echo.Context) error {
	userID := jwtmiddleware.GetUserID(c)

	user, err := h.users.FindByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return errorJSON(c, http.StatusUnauthorized, KindUnauthorized, "user not found")
		}
		h.logger.Error("failed to load token user", zap.String("user_id", userID), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, string(phoneauth.KindInternalError), "internal server error")
	}

	resp := CheckTokenResponse{
		Status:    StatusOK,
		UserID:    user.ID,
		Phone:     user.Phone,
		CreatedAt: millis(user.CreatedAt),
	}
	if user.LastLoginAt != nil {
		last := millis(*user.LastLoginAt)
		resp.LastLoginAt = &last
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	claims := jwtmiddleware.GetClaims(c)
	if claims == nil {
		return errorJSON(c, http.StatusUnauthorized, KindUnauthorized, "JWT token required")
	}

	if err := h.tokens.Revoke(claims); err != nil {
		if errors.Is(err, jwt.ErrRevocationOff) {
			return errorJSON(c, http.StatusNotImplemented, string(phoneauth.KindInternalError), "logout is not available")
		}
		return errorJSON(c, http.StatusInternalServerError, string(phoneauth.KindInternalError), "failed to revoke token")
	}

	h.logger.Info("user logged out", zap.String("user_id", claims.UserID))
	return c.JSON(http.StatusOK, StatusResponse{Status: StatusOK, Message: "logged out"})
}
