package phoneauth

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories reported to callers.
type Kind string

const (
	KindInvalidPhoneFormat        Kind = "InvalidPhoneFormat"
	KindInvalidInput              Kind = "InvalidInput"
	KindRateLimited               Kind = "RateLimited"
	KindDispatchFailed            Kind = "DispatchFailed"
	KindCodeInvalid               Kind = "CodeInvalid"
	KindCodeExpired               Kind = "CodeExpired"
	KindTokenIssuanceFailed       Kind = "TokenIssuanceFailed"
	KindCarrierVerificationFailed Kind = "CarrierVerificationFailed"
	KindInternalError             Kind = "InternalError"
)

// Error carries a Kind and a caller-safe message. Err holds the underlying
// cause for logging and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the Kind of err. Errors not produced by this package are
// InternalError.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternalError
}

const (
	msgInvalidPhone   = "invalid phone number format"
	msgInvalidCode    = "verification code must be 6 digits"
	msgInvalidScene   = "unknown verification scene"
	msgRateLimited    = "verification code requested too frequently, please retry later"
	msgDispatchFailed = "failed to send verification code"
	msgCodeInvalid    = "verification code is invalid"
	msgCodeExpired    = "verification code has expired"
	msgTokenFailed    = "failed to issue session token"
	msgCarrierFailed  = "carrier verification failed"
	msgMissingToken   = "access token is required"
	msgNoCarrierPhone = "unable to obtain phone number from carrier"
	msgInternal       = "internal server error"
)
