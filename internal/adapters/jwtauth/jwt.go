// Package jwtauth verifies bearer tokens minted by the hosted auth provider.
package jwtauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"midtown_book/internal/domain"
)

// Claims mirrors the provider's access token. Role and account status live in
// app_metadata, which only the provider's admin API can write.
type Claims struct {
	Email        string       `json:"email,omitempty"`
	AppMetadata  appMetadata  `json:"app_metadata"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

type appMetadata struct {
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

type Verifier struct {
	secret []byte
	aud    string
}

func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), aud: audience}
}

// Verify checks signature, expiry and audience and returns the caller.
// Every failure unwraps to domain.ErrUnauthorized.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: subject is not a user id", domain.ErrUnauthorized)
	}
	return domain.Principal{
		UserID: id.String(),
		Email:  c.Email,
		Name:   c.UserMetadata.FullName,
		Role:   parseRole(c.AppMetadata.Role),
		Status: parseStatus(c.AppMetadata.Status),
	}, nil
}

// Issue signs a token for p. Used by tests and local tooling; production tokens
// come from the provider.
func (v *Verifier) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Email:        p.Email,
		AppMetadata:  appMetadata{Role: string(p.Role), Status: string(p.Status)},
		UserMetadata: userMetadata{FullName: p.Name},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.aud != "" {
		c.Audience = jwt.ClaimStrings{v.aud}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

func parseRole(s string) domain.Role {
	switch r := domain.Role(strings.ToLower(s)); r {
	case domain.RoleAdmin, domain.RoleBusinessOwner:
		return r
	}
	return domain.RoleUser
}

// parseStatus keeps unknown values so CanWrite refuses them.
func parseStatus(s string) domain.UserStatus {
	if s == "" {
		return domain.UserActive
	}
	return domain.UserStatus(strings.ToLower(s))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
