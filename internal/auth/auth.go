// Package auth verifies agent credentials and issues/validates session
// tokens for the dashboard and the agent websocket handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// AgentDirectory is the slice of the agent store this package needs.
type AgentDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.Agent, error)
	FindByEmail(ctx context.Context, email string) (*domain.Agent, error)
}

type Claims struct {
	jwt.RegisteredClaims
}

type Authenticator struct {
	agents AgentDirectory
	secret []byte
	expiry time.Duration
}

func NewAuthenticator(agents AgentDirectory, secret string, expiry time.Duration) *Authenticator {
	return &Authenticator{agents: agents, secret: []byte(secret), expiry: expiry}
}

// Login verifies an email/password pair and issues a signed token for an
// active agent.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*domain.Agent, string, error) {
	agent, err := a.agents.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", domain.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(agent.Password), []byte(password)) != nil {
		return nil, "", domain.ErrUnauthorized
	}
	if !agent.IsActive {
		return nil, "", domain.ErrUnauthorized
	}

	token, err := a.IssueToken(agent.ID)
	if err != nil {
		return nil, "", err
	}
	return agent, token, nil
}

// IssueToken signs a token carrying the agent id as subject.
func (a *Authenticator) IssueToken(agentID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates a bearer token and resolves it to a specific,
// active agent identity. Anything else refuses the connection before any
// event is processed.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*domain.Agent, error) {
	if tokenString == "" {
		return nil, domain.ErrUnauthorized
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	agent, err := a.agents.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, domain.StoreError("find agent", err)
	}
	if !agent.IsActive {
		return nil, domain.ErrUnauthorized
	}

	return agent, nil
}

// HashPassword hashes an agent password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
