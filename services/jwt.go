package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/shared"
)

// JWTService issues and verifies admin tokens. The gate itself is
// unauthenticated; tokens only protect the admin surface.
type JWTService struct {
	context.DefaultService

	AccessTokenDuration time.Duration
	jwtSecretKey        string

	adminUsername     string
	adminPasswordHash string
}

type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

const JWT_SVC = "jwt_svc"

func (svc JWTService) Id() string {
	return JWT_SVC
}

func (svc *JWTService) Configure(ctx *context.Context) error {
	svc.AccessTokenDuration = 24 * time.Hour
	svc.jwtSecretKey = os.Getenv("JWT_SECRET")

	svc.adminUsername = os.Getenv("ADMIN_USERNAME")
	if svc.adminUsername == "" {
		svc.adminUsername = "admin"
	}
	// bcrypt hash of the admin password; login is disabled when unset.
	svc.adminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	return svc.DefaultService.Configure(ctx)
}

func (svc *JWTService) Start() error {
	return nil
}

// AdminLogin checks credentials against the configured admin account and
// issues a signed token on success.
func (svc *JWTService) AdminLogin(req dto.AdminLoginRequest) (*dto.AdminLoginResponse, error) {
	if svc.adminPasswordHash == "" {
		return nil, shared.NewUnauthorizedError(errors.New("admin login disabled"), "Admin login is not configured")
	}

	if req.Username != svc.adminUsername {
		return nil, shared.NewUnauthorizedError(errors.New("unknown admin user"), "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(svc.adminPasswordHash), []byte(req.Password)); err != nil {
		return nil, shared.NewUnauthorizedError(err, "Invalid credentials")
	}

	token, err := svc.ToJWT(req.Username)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue token")
	}

	return &dto.AdminLoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(svc.AccessTokenDuration.Seconds()),
	}, nil
}

func (svc *JWTService) VerifyJWTToken(jwtToken string) (string, error) {
	token, err := jwt.ParseWithClaims(jwtToken, &AdminClaims{}, svc.getJWTKey)
	if err == nil && token.Valid {
		claims, ok := token.Claims.(*AdminClaims)
		if ok && claims != nil {
			expTime, err := claims.GetExpirationTime()
			if err != nil {
				return "", fmt.Errorf("failed to get expiration time: %v", err)
			}
			now := jwt.NewNumericDate(time.Now())
			if expTime.Unix() < now.Unix() {
				return "", errors.New("token has expired")
			}

			return claims.Username, nil
		}
	}

	return "", errors.New("unsupported JWT format")
}

func (svc *JWTService) getJWTKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return []byte(svc.jwtSecretKey), nil
}

func (svc *JWTService) ToJWT(username string) (string, error) {
	expTime := time.Now().Add(svc.AccessTokenDuration)

	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "folio-gate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(svc.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

func (svc *JWTService) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", errors.New("invalid authorization header format")
	}

	return authHeader[7:], nil
}
