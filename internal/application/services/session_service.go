package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/ports"
)

// ErrInvalidSession is returned for cookies that fail signature or expiry checks
var ErrInvalidSession = errors.New("invalid session token")

const sessionIssuer = "studylog"

// SessionClaims is the payload of the session cookie. The subject is the session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionService binds opaque sessions to their selected database
type SessionService struct {
	selections        ports.SelectionRepository
	defaultCollection string
	secret            []byte
	maxAge            time.Duration
	logger            *logger.Logger
}

// NewSessionService creates a session service. When no secret is configured a
// random one is generated, so cookies do not survive a restart.
func NewSessionService(selections ports.SelectionRepository, cfg config.SessionConfig, defaultCollection string, logger *logger.Logger) (*SessionService, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET is not set; using a random secret, sessions end on restart")
	}

	return &SessionService{
		selections:        selections,
		defaultCollection: defaultCollection,
		secret:            secret,
		maxAge:            cfg.MaxAge,
		logger:            logger.WithComponent("session"),
	}, nil
}

// NewSessionID returns a fresh opaque session id
func (s *SessionService) NewSessionID() string {
	return uuid.NewString()
}

// IssueToken signs a cookie value for the session
func (s *SessionService) IssueToken(sessionID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   sessionIssuer,
			Subject:  sessionID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.maxAge > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.maxAge))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a cookie value and returns its session id
func (s *SessionService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidSession
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return claims.Subject, nil
}

// DefaultCollection returns the database used when a session has no selection
func (s *SessionService) DefaultCollection() string {
	return s.defaultCollection
}

// Current returns the session's selected database, or the default. Store
// failures are logged and fall back to the default.
func (s *SessionService) Current(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return s.defaultCollection
	}
	name, ok, err := s.selections.Get(ctx, sessionID)
	if err != nil {
		s.logger.Errorw("Failed to read selection, using default", "session_id", sessionID, "error", err)
		return s.defaultCollection
	}
	if !ok || name == "" {
		return s.defaultCollection
	}
	return name
}

// Select stores the session's database. It returns only once the store has
// committed the change.
func (s *SessionService) Select(ctx context.Context, sessionID, file string) error {
	if err := s.selections.Set(ctx, sessionID, file); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	s.logger.Debugw("Selection saved", "session_id", sessionID, "database", file)
	return nil
}

// Reassign moves every session that selected from over to to
func (s *SessionService) Reassign(ctx context.Context, from, to string) (int64, error) {
	moved, err := s.selections.Reassign(ctx, from, to)
	if err != nil {
		return moved, fmt.Errorf("failed to reassign selections: %w", err)
	}
	if moved > 0 {
		s.logger.Infow("Reassigned sessions", "from", from, "to", to, "sessions", moved)
	}
	return moved, nil
}

// Ping checks the selection store
func (s *SessionService) Ping(ctx context.Context) error {
	return s.selections.Ping(ctx)
}
