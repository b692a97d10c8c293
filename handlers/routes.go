package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/phoneauth/openapi"
)

const bearerScheme = "bearerAuth"

type Routes struct {
	Auth        *AuthHandler
	RequireJWT  echo.MiddlewareFunc
	SendLimiter echo.MiddlewareFunc
	Document    *openapi.Document
	// Logout is only served when issued tokens can be revoked.
	Logout bool
}

func (r *Routes) Register(e *echo.Echo) {
	api := e.Group("/api/auth")

	sendMiddleware := []echo.MiddlewareFunc{}
	if r.SendLimiter != nil {
		sendMiddleware = append(sendMiddleware, r.SendLimiter)
	}

	api.POST("/sms/send", r.Auth.SendCode, sendMiddleware...)
	api.POST("/sms/verify", r.Auth.VerifyCode)
	api.POST("/one-click", r.Auth.OneClick)
	api.GET("/check-token", r.Auth.CheckToken, r.RequireJWT)
	if r.Logout {
		api.POST("/logout", r.Auth.Logout, r.RequireJWT)
	}

	if r.Document != nil {
		Describe(r.Document, r.Logout)
		e.GET("/openapi.json", r.Document.JSONHandler())
		e.GET("/openapi.yaml", r.Document.YAMLHandler())
	}
}

// Describe adds the auth routes to doc.
func Describe(doc *openapi.Document, logout bool) {
	doc.Tag("auth", "Phone number authentication").
		BearerAuth(bearerScheme, "Session token returned by a successful login")

	doc.Route(http.MethodPost, "/api/auth/sms/send").
		OperationID("sendSmsCode").
		Summary("Send a verification code").
		Tags("auth").
		Body(SendCodeRequest{}, "Phone number and scene").
		Response(http.StatusOK, SendCodeResponse{}, "Code dispatched").
		Response(http.StatusBadRequest, ErrorResponse{}, "Invalid phone number").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Requested too frequently").
		Response(http.StatusBadGateway, ErrorResponse{}, "SMS dispatch failed").
		Build()

	doc.Route(http.MethodPost, "/api/auth/sms/verify").
		OperationID("verifySmsCode").
		Summary("Verify a code and log in").
		Tags("auth").
		Body(VerifyCodeRequest{}, "Phone number, code and scene").
		Response(http.StatusOK, LoginResponse{}, "Logged in").
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed input").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Code invalid or expired").
		Response(http.StatusInternalServerError, ErrorResponse{}, "Token issuance failed").
		Build()

	doc.Route(http.MethodPost, "/api/auth/one-click").
		OperationID("oneClickLogin").
		Summary("Log in with a carrier one-click credential").
		Tags("auth").
		Body(OneClickRequest{}, "Carrier access token").
		Response(http.StatusOK, LoginResponse{}, "Logged in").
		Response(http.StatusBadRequest, ErrorResponse{}, "Missing access token").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Carrier verification failed").
		Build()

	doc.Route(http.MethodGet, "/api/auth/check-token").
		OperationID("checkToken").
		Summary("Describe the identity behind a session token").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, CheckTokenResponse{}, "Token valid").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Token invalid").
		Build()

	if !logout {
		return
	}

	doc.Route(http.MethodPost, "/api/auth/logout").
		OperationID("logout").
		Summary("Revoke the current session token").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, StatusResponse{}, "Token revoked").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Token invalid").
		Build()
}
