// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/Orochi-Mail/app/dto"
	"github.com/amirphl/Orochi-Mail/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by Authenticate
const (
	CustomerIDLocal = "customer_id"
	EmailLocal      = "email"
	TokenLocal      = "access_token"
	ClaimsLocal     = "token_claims"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the bearer token and stores the caller identity in locals
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(CustomerIDLocal, claims.CustomerID)
		c.Locals(EmailLocal, claims.Email)
		c.Locals(TokenLocal, token)
		c.Locals(ClaimsLocal, claims)

		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

// GetCustomerIDFromContext extracts customer ID from the request context
func GetCustomerIDFromContext(c fiber.Ctx) (uint, bool) {
	customerID, ok := c.Locals(CustomerIDLocal).(uint)
	return customerID, ok && customerID != 0
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(ClaimsLocal).(*services.TokenClaims)
	return claims, ok
}
