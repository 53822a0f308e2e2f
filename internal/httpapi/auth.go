package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/pos"
)

// AuthManager exchanges a successful PIN login for an HS256 access token
// whose claims carry the server-side session id. The token identifies a
// session; the PIN itself is never a security credential beyond that.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	svc      *pos.Service
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, svc *pos.Service) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		svc:      svc,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	employee, sessionID, err := a.svc.Login(ctx, req.PIN)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(employee, sessionID, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Name:        employee.Name,
		Role:        employee.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.SessionID == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	employeeID, err := strconv.Atoi(sub)
	if err != nil {
		return domain.Actor{}, errors.New("invalid token subject")
	}

	return domain.Actor{
		SessionID:  claims.SessionID,
		EmployeeID: employeeID,
		Name:       claims.Name,
		Role:       claims.Role,
	}, nil
}

func (a *AuthManager) sign(employee *domain.Employee, sessionID string, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.Itoa(employee.ID),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "ichiboo",
		},
		SessionID: sessionID,
		Name:      employee.Name,
		Role:      employee.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
