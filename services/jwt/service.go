package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrTokenRevoked     = errors.New("JWT token has been revoked")
	ErrMissingUserID    = errors.New("user ID is required to issue a token")
	ErrRevocationOff    = errors.New("token revocation is not enabled")
)

type Claims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"role"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type RevocationService interface {
	IsTokenRevoked(jti string) (bool, error)
	RevokeToken(jti string, expiresAt time.Time) error
}

type Service struct {
	config            *config.Config
	logger            *logging.Service
	revocationService RevocationService
	clock             func() time.Time
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		clock:  time.Now,
	}
}

func (s *Service) RevocationEnabled() bool {
	return s.revocationService != nil
}

func (s *Service) SetRevocationService(revocationService RevocationService) {
	s.revocationService = revocationService
}

// Issue mints an HS256 session token bound to the user and role set.
func (s *Service) Issue(userID string, roles []string) (*IssuedToken, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if len(roles) == 0 {
		roles = s.config.JWT.DefaultRoles
	}

	now := s.clock()
	expiresAt := now.Add(s.config.JWT.AccessExpiry)
	jti := uuid.NewString()

	claims := Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.JWT.Issuer,
			Subject:   userID,
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign JWT token", zap.Error(err))
		return nil, fmt.Errorf("failed to generate JWT token: %w", err)
	}

	return &IssuedToken{
		Token:     tokenString,
		JTI:       jti,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0),
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}
		return []byte(s.config.JWT.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.JWT.Issuer),
		jwt.WithTimeFunc(s.clock),
	)

	if err != nil {
		s.logger.Warn("JWT token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if s.revocationService != nil {
		revoked, err := s.revocationService.IsTokenRevoked(claims.ID)
		if err != nil {
			// Revocation lookups fail open; the signature and expiry still hold.
			s.logger.Error("failed to check token revocation status", zap.Error(err))
		} else if revoked {
			s.logger.Warn("token validation failed - token has been revoked", zap.String("jti", claims.ID))
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke adds the token's jti to the deny list until it would have expired.
// Without a revocation service it returns ErrRevocationOff, since the token
// would otherwise stay valid.
func (s *Service) Revoke(claims *Claims) error {
	if s.revocationService == nil {
		s.logger.Warn("token revocation requested but revocation service not available")
		return ErrRevocationOff
	}

	expiresAt := s.clock().Add(s.config.JWT.AccessExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.revocationService.RevokeToken(claims.ID, expiresAt); err != nil {
		s.logger.Error("failed to revoke token", zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.Info("token revoked successfully", zap.String("jti", claims.ID))
	return nil
}
