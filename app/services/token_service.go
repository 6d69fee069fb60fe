package services

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService issues and validates customer access tokens
type TokenService interface {
	GenerateAccessToken(customerID uint, email string) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims carried by an access token
type TokenClaims struct {
	CustomerID uint   `json:"customer_id"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	signingMethod  jwt.SigningMethod
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	secretKey      []byte
	issuer         string
	audience       string
}

// NewTokenService creates a new token service. With useRSAKeys the PEM
// keys sign with RS256, otherwise secretKey signs with HS256.
func NewTokenService(accessTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	s := &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		issuer:         issuer,
		audience:       audience,
	}

	if useRSAKeys {
		privateKey, publicKey, err := parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		s.privateKey = privateKey
		s.publicKey = publicKey
		s.signingMethod = jwt.SigningMethodRS256
		return s, nil
	}

	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required when not using RSA keys")
	}
	s.secretKey = []byte(secretKey)
	s.signingMethod = jwt.SigningMethodHS256
	return s, nil
}

func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return privateKey, publicKey, nil
}

// GenerateAccessToken signs an access token for the customer
func (s *TokenServiceImpl) GenerateAccessToken(customerID uint, email string) (string, error) {
	now := utils.UTCNow()
	claims := TokenClaims{
		CustomerID: customerID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(customerID), 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)
	if s.privateKey != nil {
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// ValidateToken validates a JWT token and returns its claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(utils.UTCNow),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.CustomerID == 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (s *TokenServiceImpl) keyFunc(*jwt.Token) (any, error) {
	if s.publicKey != nil {
		return s.publicKey, nil
	}
	return s.secretKey, nil
}
