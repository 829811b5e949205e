package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

// Staff roles carried in access tokens
const (
	RoleOwner   = "OWNER"
	RoleManager = "MANAGER"
	RoleWaiter  = "WAITER"
	RoleKitchen = "KITCHEN"
	RoleCashier = "CASHIER"
)

// Authenticator issues and validates staff access tokens. Users themselves are
// managed elsewhere; a token only has to name the actor.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for actor
func (a *Authenticator) Issue(actor core.Actor) (string, error) {
	if actor.UserID == "" {
		return "", core.Validation("user_id", "user id is required")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"user_id": actor.UserID,
		"name":    actor.Name,
		"role":    strings.ToUpper(actor.Role),
		"exp":     now.Add(a.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate checks a token and returns the actor it names
func (a *Authenticator) Validate(tokenString string) (core.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return core.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return core.Actor{}, fmt.Errorf("invalid token")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return core.Actor{}, fmt.Errorf("token has no user_id")
	}
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	return core.Actor{UserID: userID, Name: name, Role: strings.ToUpper(strings.TrimSpace(role))}, nil
}
