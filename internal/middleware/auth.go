// Package middleware provides authentication, logging, rate limiting and tracing middleware.
package middleware

import (
	"context"
	"strings"
	"time"

	"wanderfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SubjectResolver maps an identity-provider subject to an internal user id.
type SubjectResolver interface {
	UserIDForSubject(ctx context.Context, subject string) (uuid.UUID, error)
}

// IdentityClaims are the claims issued by the identity provider.
type IdentityClaims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens and resolves the caller.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	resolver SubjectResolver
}

// NewAuthenticator builds an Authenticator. Issuer and audience are checked only when set.
func NewAuthenticator(secret, issuer, audience string, resolver SubjectResolver) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		resolver: resolver,
	}
}

func (a *Authenticator) parse(c *fiber.Ctx) (*IdentityClaims, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, models.NewUnauthorizedError("Authorization header required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, models.NewUnauthorizedError("Invalid authorization header format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, models.NewUnauthorizedError("Invalid token structure - missing subject")
	}
	return claims, nil
}

// RequireToken validates the token without requiring a provisioned account.
func (a *Authenticator) RequireToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := a.parse(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		c.Locals(LocalSubject, claims.Subject)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

// AuthRequired validates the token and resolves the caller's internal user id.
func (a *Authenticator) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := a.parse(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		userID, err := a.resolver.UserIDForSubject(c.UserContext(), claims.Subject)
		if err != nil {
			if models.IsNotFound(err) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account not provisioned"))
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}

		c.Locals(LocalSubject, claims.Subject)
		c.Locals(LocalClaims, claims)
		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and
// otherwise continues anonymously.
func (a *Authenticator) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		claims, err := a.parse(c)
		if err != nil {
			return c.Next()
		}
		if userID, err := a.resolver.UserIDForSubject(c.UserContext(), claims.Subject); err == nil {
			c.Locals(LocalUserID, userID)
		}
		return c.Next()
	}
}

// IssueToken signs an HS256 token for subject. Used by the seed command and tests.
func IssueToken(secret, subject string, ttl time.Duration, claims IdentityClaims) (string, error) {
	now := time.Now()
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
