package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"staffbook/internal/platform/logger"
)

type Service struct {
	Store  *Store
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store *Store, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{Store: store, secret: secret, ttl: ttl, now: time.Now}
}

// Login checks email and password and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	acct, ok, err := s.Store.FindAccountByEmail(ctx, email)
	if err != nil {
		return Token{}, err
	}
	if !ok || acct.Disabled || acct.PasswordHash == "" {
		return Token{}, ErrInvalidCredentials
	}
	if err := CheckPassword(acct.PasswordHash, password); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	now := s.now()
	sessionID := uuid.NewString()
	expires := now.Add(s.ttl)
	if err := s.Store.CreateSession(ctx, acct.ID, HashSessionID(sessionID), now, expires); err != nil {
		return Token{}, fmt.Errorf("create session: %w", err)
	}
	token, err := GenerateToken(s.secret, Claims{UserID: acct.ID, Role: acct.Role, SessionID: sessionID}, now, s.ttl)
	if err != nil {
		return Token{}, err
	}
	profile, _, err := s.Store.Profile(ctx, acct.ID)
	if err != nil {
		return Token{}, err
	}
	logger.From(ctx).Info().Str("userId", acct.ID).Msg("signed in")
	return Token{AccessToken: token, ExpiresAt: expires, Profile: profile}, nil
}

// Authenticate resolves a bearer token to its caller. Accounts that lost
// their email are signed out everywhere.
func (s *Service) Authenticate(ctx context.Context, token string) (UserContext, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return UserContext{}, ErrInvalidSession
	}
	now := s.now()
	valid, err := s.Store.SessionValid(ctx, claims.UserID, HashSessionID(claims.SessionID), now)
	if err != nil {
		return UserContext{}, err
	}
	if !valid {
		return UserContext{}, ErrInvalidSession
	}
	acct, ok, err := s.Store.Account(ctx, claims.UserID)
	if err != nil {
		return UserContext{}, err
	}
	if !ok || acct.Disabled {
		return UserContext{}, ErrInvalidSession
	}
	if strings.TrimSpace(acct.Email) == "" {
		revoked, err := s.Store.RevokeUserSessions(ctx, acct.ID, now)
		if err != nil {
			return UserContext{}, err
		}
		logger.From(ctx).Warn().Str("userId", acct.ID).Int("sessions", revoked).Msg("account without email signed out")
		return UserContext{}, ErrEmailRequired
	}
	return UserContext{UserID: acct.ID, Email: acct.Email, Role: acct.Role, SessionID: claims.SessionID}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.Store.RevokeSession(ctx, HashSessionID(sessionID), s.now())
}

func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	p, ok, err := s.Store.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// EnsureAccount creates an account for email unless one exists and returns
// its id.
func (s *Service) EnsureAccount(ctx context.Context, email, password, role string) (string, bool, error) {
	if !ValidRole(role) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false, ErrEmailRequired
	}
	existing, ok, err := s.Store.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	if ok {
		return existing.ID, false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", false, err
	}
	acct := account{ID: uuid.NewString(), Email: email, PasswordHash: hash, Role: role}
	displayName, _, _ := strings.Cut(email, "@")
	if err := s.Store.CreateAccount(ctx, acct, displayName); err != nil {
		return "", false, err
	}
	return acct.ID, true, nil
}

// PurgeSessions deletes sessions that ended before cutoff.
func (s *Service) PurgeSessions(ctx context.Context, cutoff time.Time) (int, error) {
	return s.Store.DeleteExpiredSessions(ctx, cutoff)
}
