package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/golang-jwt/jwt/v5"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/shared"
)

type JWTService struct {
	context.DefaultService

	AccessTokenDuration time.Duration
	jwtSecretKey        string
	issuer              string
}

// CustomClaims are issued by the identity provider. Role carries the stored role name.
type CustomClaims struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

const JWT_SVC = "jwt_svc"

func (svc JWTService) Id() string {
	return JWT_SVC
}

func (svc *JWTService) Configure(ctx *context.Context) error {
	svc.AccessTokenDuration = 24 * time.Hour
	svc.jwtSecretKey = os.Getenv("JWT_OAUTH_SECRET")
	svc.issuer = os.Getenv("JWT_ISSUER")
	return svc.DefaultService.Configure(ctx)
}

func (svc *JWTService) Start() error {
	if svc.jwtSecretKey == "" {
		return errors.New("JWT_OAUTH_SECRET is not set")
	}
	return nil
}

// NewJWTService builds a standalone verifier outside the service container.
func NewJWTService(secret string) *JWTService {
	return &JWTService{AccessTokenDuration: 24 * time.Hour, jwtSecretKey: secret}
}

func (svc *JWTService) VerifyJWTToken(jwtToken string) (*shared.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if svc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(svc.issuer))
	}

	token, err := jwt.ParseWithClaims(jwtToken, &CustomClaims{}, svc.getJWTKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("unsupported JWT format")
	}

	return &shared.Identity{
		UserID:        claims.UserID,
		Role:          shared.ParseRole(claims.Role),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (svc *JWTService) getJWTKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return []byte(svc.jwtSecretKey), nil
}

// ToJWT signs a token for identity. Used by tooling and tests; production tokens come from the identity provider.
func (svc *JWTService) ToJWT(identity shared.Identity) (*dto.TokenPair, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:        identity.UserID,
		Role:          identity.Role.String(),
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(svc.AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    svc.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(svc.jwtSecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %v", err)
	}

	return &dto.TokenPair{
		AccessToken: tokenString,
		ExpiresIn:   int64(svc.AccessTokenDuration.Seconds()),
	}, nil
}
