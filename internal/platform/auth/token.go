// Package auth implements the mock OAuth token endpoint and bearer-token
// resolution. Access tokens are HS256-signed JWTs carrying username and role,
// but clients must treat them as opaque: a token is only honored while its
// server-side session is alive, matching the reference-data semantics of the
// real OpenLMIS auth service.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadCredentials is returned by Issue for an unknown username/password
// pair. The handler maps it to a 401 invalid_grant response.
var ErrBadCredentials = errors.New("bad credentials")

// User is a mock account the token endpoint authenticates against.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	Role      string `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Session is the server-side state bound to an issued access token.
type Session struct {
	UserID    string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// TokenResponse is the OAuth2 token endpoint body.
type TokenResponse struct {
	AccessToken         string `json:"access_token"`
	TokenType           string `json:"token_type"`
	ExpiresIn           int    `json:"expires_in"`
	RefreshToken        string `json:"refresh_token"`
	ReferenceDataUserID string `json:"referenceDataUserId"`
}

// CheckResponse is the check_token endpoint body.
type CheckResponse struct {
	UserName            string   `json:"user_name"`
	ReferenceDataUserID string   `json:"referenceDataUserId"`
	Authorities         []string `json:"authorities"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Service issues and resolves bearer tokens for the mock user set.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]Session
	users    []User
	byName   map[string]User
	byID     map[string]User
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a token service over the given users. The secret signs
// access tokens; ttl bounds session lifetime.
func NewService(users []User, secret []byte, ttl time.Duration) *Service {
	s := &Service{
		sessions: make(map[string]Session),
		users:    users,
		byName:   make(map[string]User, len(users)),
		byID:     make(map[string]User, len(users)),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, u := range users {
		s.byName[u.Username] = u
		s.byID[u.ID] = u
	}
	return s
}

// Issue authenticates username/password and returns a fresh token pair.
func (s *Service) Issue(username, password string) (*TokenResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byName[username]
	if !ok || u.Password != password {
		return nil, ErrBadCredentials
	}

	expiresAt := s.now().Add(s.ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
		Role: u.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	s.sessions[token] = Session{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		ExpiresAt: expiresAt,
	}

	return &TokenResponse{
		AccessToken:         token,
		TokenType:           "bearer",
		ExpiresIn:           int(s.ttl.Seconds()),
		RefreshToken:        uuid.NewString(),
		ReferenceDataUserID: u.ID,
	}, nil
}

// Resolve returns the live session for a token. It requires both a valid
// signature and a live server-side session; expired sessions are evicted.
func (s *Service) Resolve(token string) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	if s.now().After(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, false
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, false
	}
	return sess, true
}

// Check validates a token for the check_token endpoint.
func (s *Service) Check(token string) (*CheckResponse, bool) {
	sess, ok := s.Resolve(token)
	if !ok {
		return nil, false
	}
	return &CheckResponse{
		UserName:            sess.Username,
		ReferenceDataUserID: sess.UserID,
		Authorities:         []string{sess.Role},
	}, true
}

// Users returns all accounts with passwords stripped, in load order.
func (s *Service) Users() []User {
	out := make([]User, len(s.users))
	for i, u := range s.users {
		u.Password = ""
		out[i] = u
	}
	return out
}

// User returns one account by id with the password stripped.
func (s *Service) User(id string) (User, bool) {
	u, ok := s.byID[id]
	if !ok {
		return User{}, false
	}
	u.Password = ""
	return u, true
}
