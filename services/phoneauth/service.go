package phoneauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tech-arch1tect/phoneauth/services/carrier"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/loginlog"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/sms"
	"github.com/tech-arch1tect/phoneauth/services/smscode"
	"go.uber.org/zap"
)

var (
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizePhone reduces a carrier reported number such as "+86 138 0013 8000"
// to the 11 digit domestic form. The result is empty when it is not a valid
// mobile number.
func NormalizePhone(raw string) string {
	phone := strings.Join(strings.Fields(raw), "")
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) == 13 && strings.HasPrefix(phone, "86") {
		phone = phone[2:]
	}
	if !ValidPhone(phone) {
		return ""
	}
	return phone
}

type TokenIssuer interface {
	Issue(userID string, roles []string) (*jwt.IssuedToken, error)
}

type LoginRecorder interface {
	Record(ctx context.Context, entry loginlog.Entry)
}

type Dependencies struct {
	Codes      smscode.Store
	Limiter    *smscode.RateLimiter
	Generator  *smscode.Generator
	Dispatcher sms.Dispatcher
	Users      identity.Store
	Tokens     TokenIssuer
	Resolver   carrier.Resolver
	Recorder   LoginRecorder
	Logger     *logging.Service

	// Roles granted to every issued token.
	Roles []string
	// DebugMode persists undelivered codes and returns them to the caller.
	DebugMode bool
	Clock     func() time.Time
}

type Service struct {
	codes      smscode.Store
	limiter    *smscode.RateLimiter
	generator  *smscode.Generator
	dispatcher sms.Dispatcher
	users      identity.Store
	tokens     TokenIssuer
	resolver   carrier.Resolver
	recorder   LoginRecorder
	logger     *logging.Service
	roles      []string
	debugMode  bool
	clock      func() time.Time
}

func NewService(deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		codes:      deps.Codes,
		limiter:    deps.Limiter,
		generator:  deps.Generator,
		dispatcher: deps.Dispatcher,
		users:      deps.Users,
		tokens:     deps.Tokens,
		resolver:   deps.Resolver,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		roles:      deps.Roles,
		debugMode:  deps.DebugMode,
		clock:      clock,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

type RequestCodeInput struct {
	Phone    string
	Scene    string
	ClientIP string
}

type RequestCodeResult struct {
	DispatchID string
	ExpiresAt  time.Time
	// DebugCode is only set when dispatch failed and debug mode is enabled.
	DebugCode string
}

// RequestCode issues a verification code for a phone and scene. The code is
// persisted only once the dispatcher has accepted it.
func (s *Service) RequestCode(ctx context.Context, in RequestCodeInput) (*RequestCodeResult, error) {
	if !ValidPhone(in.Phone) {
		return nil, newError(KindInvalidPhoneFormat, msgInvalidPhone, nil)
	}

	scene, err := smscode.ParseScene(in.Scene)
	if err != nil {
		return nil, newError(KindInvalidInput, msgInvalidScene, err)
	}
	now := s.now()

	if err := s.limiter.Allow(ctx, in.Phone, now); err != nil {
		if errors.Is(err, smscode.ErrRateLimited) {
			s.logger.Info("verification code rate limited", logging.Phone(in.Phone))
			return nil, newError(KindRateLimited, msgRateLimited, err)
		}
		s.logger.Error("failed to check code rate limit", logging.Phone(in.Phone), zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}

	code, expiresAt, err := s.generator.Generate(now)
	if err != nil {
		s.logger.Error("failed to generate verification code", zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}

	record := &smscode.VerificationCode{
		Phone:     in.Phone,
		Scene:     scene,
		Code:      code,
		ClientIP:  in.ClientIP,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	receipt, dispatchErr := s.dispatcher.Send(ctx, sms.Message{
		Phone:         in.Phone,
		Template:      sms.TemplateForScene(string(scene)),
		Code:          code,
		ExpiryMinutes: int(s.generator.TTL() / time.Minute),
	})
	if dispatchErr != nil {
		if !s.debugMode {
			s.logger.Error("failed to dispatch verification code",
				logging.Phone(in.Phone),
				zap.String("scene", string(scene)),
				zap.Error(dispatchErr))
			return nil, newError(KindDispatchFailed, msgDispatchFailed, dispatchErr)
		}

		s.logger.Warn("dispatch failed, persisting debug verification code",
			logging.Phone(in.Phone),
			zap.String("scene", string(scene)),
			zap.Error(dispatchErr))
		record.Debug = true
		record.DispatchID = fmt.Sprintf("dev_%d", now.UnixMilli())
	} else {
		record.DispatchID = receipt.DispatchID
	}

	if err := s.codes.ReplaceUnused(ctx, record); err != nil {
		s.logger.Error("failed to persist verification code", logging.Phone(in.Phone), zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}

	result := &RequestCodeResult{
		DispatchID: record.DispatchID,
		ExpiresAt:  expiresAt,
	}
	if record.Debug {
		result.DebugCode = code
	}

	s.logger.Info("verification code issued",
		logging.Phone(in.Phone),
		zap.String("scene", string(scene)),
		zap.String("dispatch_id", record.DispatchID),
		zap.Bool("debug", record.Debug))
	return result, nil
}

type VerifyCodeInput struct {
	Phone     string
	Code      string
	Scene     string
	ClientIP  string
	UserAgent string
}

type Profile struct {
	Nickname string
	Avatar   string
	Phone    string
}

type LoginResult struct {
	Token          string
	TokenExpiresAt time.Time
	UserID         string
	IsNewUser      bool
	Profile        Profile
}

// VerifyCode consumes a code and logs the phone's identity in, creating it
// on first use. Wrong, consumed and unknown codes are all CodeInvalid.
func (s *Service) VerifyCode(ctx context.Context, in VerifyCodeInput) (*LoginResult, error) {
	if !ValidPhone(in.Phone) {
		return nil, newError(KindInvalidInput, msgInvalidPhone, nil)
	}
	if !codePattern.MatchString(in.Code) {
		return nil, newError(KindInvalidInput, msgInvalidCode, nil)
	}

	scene, err := smscode.ParseScene(in.Scene)
	if err != nil {
		return nil, newError(KindInvalidInput, msgInvalidScene, err)
	}

	record, err := s.codes.FindByValue(ctx, in.Phone, in.Code, scene)
	if err != nil {
		if errors.Is(err, smscode.ErrCodeNotFound) {
			return nil, newError(KindCodeInvalid, msgCodeInvalid, nil)
		}
		s.logger.Error("failed to look up verification code", logging.Phone(in.Phone), zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}

	now := s.now()
	if record.Expired(now) {
		if err := s.codes.Delete(ctx, record.ID); err != nil {
			s.logger.Warn("failed to delete expired verification code", zap.Uint("code_id", record.ID), zap.Error(err))
		}
		return nil, newError(KindCodeExpired, msgCodeExpired, nil)
	}

	consumed, err := s.codes.MarkUsed(ctx, record.ID, in.ClientIP, now)
	if err != nil {
		s.logger.Error("failed to consume verification code", zap.Uint("code_id", record.ID), zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}
	if !consumed {
		return nil, newError(KindCodeInvalid, msgCodeInvalid, nil)
	}

	return s.completeLogin(ctx, in.Phone, in.ClientIP, in.UserAgent, loginlog.LoginTypeSMS)
}

type CarrierLoginInput struct {
	AccessToken string
	OpenID      string
	ClientIP    string
	UserAgent   string
}

// LoginWithCarrierCredential resolves a one-click carrier credential to a
// phone number and logs that identity in without a verification code.
func (s *Service) LoginWithCarrierCredential(ctx context.Context, in CarrierLoginInput) (*LoginResult, error) {
	if in.AccessToken == "" {
		return nil, newError(KindInvalidInput, msgMissingToken, nil)
	}

	reported, err := s.resolver.ResolvePhone(ctx, in.AccessToken, in.OpenID)
	if err != nil {
		message := msgCarrierFailed
		var providerErr *carrier.ProviderError
		if errors.As(err, &providerErr) && providerErr.Message != "" {
			message = providerErr.Message
		}
		s.logger.Warn("carrier verification failed", zap.Error(err))
		return nil, newError(KindCarrierVerificationFailed, message, err)
	}
	phone := NormalizePhone(reported)
	if phone == "" {
		if reported != "" {
			s.logger.Warn("carrier returned an unusable phone number", zap.Int("length", len(reported)))
		}
		return nil, newError(KindCarrierVerificationFailed, msgNoCarrierPhone, nil)
	}

	return s.completeLogin(ctx, phone, in.ClientIP, in.UserAgent, loginlog.LoginTypeOneClick)
}

// completeLogin is shared by every entry path once a phone number has been
// proven: resolve the identity, mint a token and record the login.
func (s *Service) completeLogin(ctx context.Context, phone, clientIP, userAgent string, loginType loginlog.LoginType) (*LoginResult, error) {
	user, isNew, err := s.resolveIdentity(ctx, phone, clientIP)
	if err != nil {
		s.logger.Error("failed to resolve identity", logging.Phone(phone), zap.Error(err))
		return nil, newError(KindInternalError, msgInternal, err)
	}

	token, err := s.tokens.Issue(user.ID, s.roles)
	if err != nil {
		s.logger.Error("failed to issue token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, newError(KindTokenIssuanceFailed, msgTokenFailed, err)
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, loginlog.Entry{
			UserID:    user.ID,
			Phone:     phone,
			LoginType: loginType,
			IP:        clientIP,
			UserAgent: userAgent,
		})
	}

	s.logger.Info("phone login succeeded",
		logging.Phone(phone),
		zap.String("user_id", user.ID),
		zap.String("login_type", string(loginType)),
		zap.Bool("new_user", isNew))

	return &LoginResult{
		Token:          token.Token,
		TokenExpiresAt: token.ExpiresAt,
		UserID:         user.ID,
		IsNewUser:      isNew,
		Profile: Profile{
			Nickname: user.Nickname,
			Avatar:   user.Avatar,
			Phone:    user.Phone,
		},
	}, nil
}

// resolveIdentity finds the user owning phone or creates one. Losing a
// creation race to a concurrent login is resolved by re-reading the winner.
func (s *Service) resolveIdentity(ctx context.Context, phone, clientIP string) (*identity.User, bool, error) {
	now := s.now()

	user, err := s.users.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return s.touch(ctx, user, clientIP, now)
	case !errors.Is(err, identity.ErrUserNotFound):
		return nil, false, err
	}

	user = &identity.User{
		Phone:       phone,
		Nickname:    identity.DefaultNickname(phone),
		Status:      identity.StatusNormal,
		RegisterIP:  clientIP,
		LastLoginAt: &now,
		LastLoginIP: clientIP,
	}
	err = s.users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, identity.ErrDuplicatePhone) {
		return nil, false, err
	}

	s.logger.Info("identity created concurrently, re-reading", logging.Phone(phone))
	existing, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	return s.touch(ctx, existing, clientIP, now)
}

func (s *Service) touch(ctx context.Context, user *identity.User, clientIP string, now time.Time) (*identity.User, bool, error) {
	if err := s.users.TouchLogin(ctx, user.ID, clientIP, now); err != nil {
		return nil, false, err
	}
	user.LastLoginAt = &now
	user.LastLoginIP = clientIP
	return user, false, nil
}
