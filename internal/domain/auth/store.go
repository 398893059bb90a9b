package auth

import (
	"context"
	"strings"
	"time"

	"staffbook/internal/platform/docstore"
)

const (
	usersCollection    = "users"
	profilesCollection = "profiles"
	sessionsCollection = "sessions"
)

// Store reads and writes accounts, profiles and sessions as documents.
type Store struct {
	Docs *docstore.Store
}

func NewStore(docs *docstore.Store) *Store {
	return &Store{Docs: docs}
}

func toAccount(key string, data map[string]any) account {
	email, _ := data["email"].(string)
	hash, _ := data["passwordHash"].(string)
	role, _ := data["role"].(string)
	disabled, _ := data["disabled"].(bool)
	return account{ID: key, Email: email, PasswordHash: hash, Role: role, Disabled: disabled}
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (account, bool, error) {
	docs, err := s.Docs.List(ctx, usersCollection)
	if err != nil {
		return account{}, false, err
	}
	want := strings.ToLower(strings.TrimSpace(email))
	for _, doc := range docs {
		acct := toAccount(doc.Key, doc.Data)
		if acct.Email != "" && strings.ToLower(acct.Email) == want {
			return acct, true, nil
		}
	}
	return account{}, false, nil
}

func (s *Store) Account(ctx context.Context, userID string) (account, bool, error) {
	value, ok, err := s.Docs.Get(ctx, docstore.Join(usersCollection, userID))
	if err != nil || !ok {
		return account{}, false, err
	}
	data, _ := value.(map[string]any)
	return toAccount(userID, data), true, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct account, displayName string) error {
	return s.Docs.Update(ctx, map[string]any{
		docstore.Join(usersCollection, acct.ID): map[string]any{
			"email":        acct.Email,
			"passwordHash": acct.PasswordHash,
			"role":         acct.Role,
			"disabled":     acct.Disabled,
		},
		docstore.Join(profilesCollection, acct.ID): map[string]any{
			"displayName": displayName,
			"email":       acct.Email,
			"role":        acct.Role,
		},
	})
}

func (s *Store) Profile(ctx context.Context, userID string) (Profile, bool, error) {
	value, ok, err := s.Docs.Get(ctx, docstore.Join(profilesCollection, userID))
	if err != nil || !ok {
		return Profile{}, false, err
	}
	data, _ := value.(map[string]any)
	p := Profile{UserID: userID}
	p.DisplayName, _ = data["displayName"].(string)
	p.Email, _ = data["email"].(string)
	p.Role, _ = data["role"].(string)
	p.LastLoginAt, _ = data["lastLoginAt"].(string)
	return p, true, nil
}

// CreateSession stores the session and stamps the login time in one write.
func (s *Store) CreateSession(ctx context.Context, userID, sessionHash string, now, expires time.Time) error {
	return s.Docs.Update(ctx, map[string]any{
		docstore.Join(sessionsCollection, sessionHash): map[string]any{
			"uid":       userID,
			"createdAt": now.UTC().Format(time.RFC3339Nano),
			"expiresAt": expires.UTC().Format(time.RFC3339Nano),
		},
		docstore.Join(profilesCollection, userID, "lastLoginAt"): now.UTC().Format(time.RFC3339Nano),
	})
}

// SessionValid reports whether the session exists for userID, is not
// revoked and has not expired at now.
func (s *Store) SessionValid(ctx context.Context, userID, sessionHash string, now time.Time) (bool, error) {
	value, ok, err := s.Docs.Get(ctx, docstore.Join(sessionsCollection, sessionHash))
	if err != nil || !ok {
		return false, err
	}
	data, _ := value.(map[string]any)
	if uid, _ := data["uid"].(string); uid != userID {
		return false, nil
	}
	if revoked, _ := data["revokedAt"].(string); revoked != "" {
		return false, nil
	}
	expires, _ := data["expiresAt"].(string)
	at, err := time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return false, nil
	}
	return now.Before(at), nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionHash string, now time.Time) error {
	return s.Docs.Transact(ctx, func(txn *docstore.Txn) error {
		_, ok, err := txn.Document(sessionsCollection, sessionHash)
		if err != nil || !ok {
			return err
		}
		return txn.Set(docstore.Join(sessionsCollection, sessionHash, "revokedAt"), now.UTC().Format(time.RFC3339Nano))
	})
}

// RevokeUserSessions revokes every live session of userID.
func (s *Store) RevokeUserSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	revoked := 0
	stamp := now.UTC().Format(time.RFC3339Nano)
	err := s.Docs.Transact(ctx, func(txn *docstore.Txn) error {
		docs, err := txn.List(sessionsCollection)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		for _, doc := range docs {
			uid, _ := doc.Data["uid"].(string)
			done, _ := doc.Data["revokedAt"].(string)
			if uid != userID || done != "" {
				continue
			}
			updates[docstore.Join(sessionsCollection, doc.Key, "revokedAt")] = stamp
		}
		revoked = len(updates)
		if revoked == 0 {
			return nil
		}
		return txn.Update(updates)
	})
	return revoked, err
}

// DeleteExpiredSessions removes sessions that expired or were revoked
// before cutoff.
func (s *Store) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.Docs.Transact(ctx, func(txn *docstore.Txn) error {
		docs, err := txn.List(sessionsCollection)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		for _, doc := range docs {
			if sessionEndedBefore(doc.Data, cutoff) {
				updates[docstore.Join(sessionsCollection, doc.Key)] = nil
			}
		}
		deleted = len(updates)
		if deleted == 0 {
			return nil
		}
		return txn.Update(updates)
	})
	return deleted, err
}

func sessionEndedBefore(data map[string]any, cutoff time.Time) bool {
	for _, field := range []string{"revokedAt", "expiresAt"} {
		raw, _ := data[field].(string)
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err == nil && at.Before(cutoff) {
			return true
		}
	}
	return false
}
