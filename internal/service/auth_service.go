package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// AuthConfig defines how access tokens from the managed backend are verified.
type AuthConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	RoleClaim string
}

// AuthService verifies access tokens. Login and sessions live in the
// managed backend; this service only reads their tokens.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	parser *jwt.Parser
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RoleClaim == "" {
		config.RoleClaim = "app_role"
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &AuthService{logger: logger, config: config, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and validates an access token returning the claims.
// The role is read from the configured claim, either top-level or inside
// app_metadata; unknown roles are rejected.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := jwt.MapClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}

	role := models.UserRole(strings.ToUpper(s.stringClaim(claims, s.config.RoleClaim)))
	if !role.Valid() {
		s.logger.Debug("token rejected for role", zap.String("sub", subject), zap.String("role", string(role)))
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %q is not allowed", role))
	}

	return &models.JWTClaims{
		UserID:    subject,
		Email:     s.stringClaim(claims, "email"),
		Role:      role,
		TeacherID: s.stringClaim(claims, "teacher_id"),
	}, nil
}

func (s *AuthService) stringClaim(claims jwt.MapClaims, name string) string {
	if value, ok := claims[name].(string); ok && value != "" {
		return value
	}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if value, ok := meta[name].(string); ok {
			return value
		}
	}
	return ""
}
