// Package auth registers users, checks credentials and issues, verifies
// and revokes session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = time.Hour
	// RevocationCapacity bounds the in-memory list of logged out tokens.
	// Past it, the least recently used revocation is forgotten and that
	// token verifies again until it expires.
	RevocationCapacity = 100_000
)

// CredentialStore is the persistence the service needs for identities.
type CredentialStore interface {
	FindByName(ctx context.Context, nombre string) (core.Credential, error)
	Create(ctx context.Context, nombre, secret string) (core.User, error)
	UpdateSecret(ctx context.Context, id int64, secret string) error
}

// Options configures a Service.
type Options struct {
	// Secret signs and verifies tokens. It must not be empty.
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	// Revoked records logged out token ids. Defaults to an in-process LRU.
	Revoked cache.Cache[struct{}]
	Now     func() time.Time
}

type Service struct {
	store   CredentialStore
	secret  []byte
	ttl     time.Duration
	cost    int
	revoked cache.Cache[struct{}]
	now     func() time.Time
}

func NewService(store CredentialStore, opts Options) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	s := &Service{
		store:   store,
		secret:  opts.Secret,
		ttl:     opts.TokenTTL,
		cost:    opts.BcryptCost,
		revoked: opts.Revoked,
		now:     opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.cost < bcrypt.MinCost || s.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", s.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if s.revoked == nil {
		s.revoked = NewRevocationList(s.clock)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// NewRevocationList returns the bounded list Logout writes to. Evicting a
// revocation that has not expired yet is logged.
func NewRevocationList(now func() time.Time) *cache.LRUCache[struct{}] {
	return newRevocationList(RevocationCapacity, now)
}

func newRevocationList(capacity int, now func() time.Time) *cache.LRUCache[struct{}] {
	return cache.NewLRUCache[struct{}](capacity).WithClock(now).WithEvictHook(func(string) {
		slog.Warn("Revocation list full, evicted a live revocation", "capacity", capacity)
	})
}

func (s *Service) clock() time.Time {
	return s.now()
}

// Register creates a user. The password is stored as a bcrypt hash.
func (s *Service) Register(ctx context.Context, username, password string) (core.User, error) {
	if err := core.ValidateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	_, err := s.store.FindByName(ctx, username)
	switch {
	case err == nil:
		return core.User{}, core.Conflict("user already exists")
	case !errors.Is(err, core.ErrNotFound):
		return core.User{}, err
	}

	hash, err := hashPassword(password, s.cost)
	if errors.Is(err, core.ErrValidation) {
		return core.User{}, err
	}
	if err != nil {
		return core.User{}, core.Dependency("hash password", err)
	}

	user, err := s.store.Create(ctx, username, hash)
	if errors.Is(err, core.ErrConflict) {
		// Lost a race with a concurrent registration of the same name.
		return core.User{}, core.Conflict("user already exists")
	}
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// Login checks a username and password and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (core.User, string, error) {
	if err := core.ValidateCredentials(username, password); err != nil {
		return core.User{}, "", err
	}

	cred, err := s.store.FindByName(ctx, username)
	if err != nil {
		return core.User{}, "", err
	}

	ok, legacy, err := checkPassword(cred.Secret, password)
	if err != nil {
		return core.User{}, "", core.Dependency("verify password", err)
	}
	if !ok {
		slog.WarnContext(ctx, "Login rejected", "user_id", cred.ID)
		return core.User{}, "", core.Unauthenticated("invalid password")
	}
	if legacy {
		s.upgradeSecret(ctx, cred.ID, password)
	}

	token, err := s.issueToken(cred.User)
	if err != nil {
		return core.User{}, "", core.Dependency("sign token", err)
	}
	return cred.User, token, nil
}

// SetPassword replaces the password of an existing user. Sessions already
// issued stay valid until they expire.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if err := core.ValidateCredentials(username, password); err != nil {
		return err
	}
	cred, err := s.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password, s.cost)
	if errors.Is(err, core.ErrValidation) {
		return err
	}
	if err != nil {
		return core.Dependency("hash password", err)
	}
	if err := s.store.UpdateSecret(ctx, cred.ID, hash); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Password reset", "user_id", cred.ID)
	return nil
}

// upgradeSecret replaces a plaintext secret with its hash. Failure only
// delays the upgrade to the next login.
func (s *Service) upgradeSecret(ctx context.Context, id int64, password string) {
	hash, err := hashPassword(password, s.cost)
	if err == nil {
		err = s.store.UpdateSecret(ctx, id, hash)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade legacy password", "user_id", id, "error", err)
		return
	}
	slog.InfoContext(ctx, "Legacy password upgraded to hash", "user_id", id)
}

// VerifyToken returns the identity carried by a token, or nil when the
// token is malformed, badly signed, expired or revoked.
func (s *Service) VerifyToken(token string) *core.Claim {
	if token == "" {
		return nil
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	if _, revoked := s.revoked.Get(claims.RegisteredClaims.ID); revoked {
		return nil
	}
	return claims.claim()
}

// Logout revokes the given token until it would have expired anyway.
// Invalid or missing tokens are accepted silently.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.parseToken(token)
	if err != nil || claims.RegisteredClaims.ID == "" {
		return
	}
	s.revoked.Set(claims.RegisteredClaims.ID, struct{}{}, claims.remaining(s.now()))
	slog.InfoContext(ctx, "Session revoked", "user_id", claims.ID)
}

// Revocations returns the cleaner for the revocation list, when it has one.
func (s *Service) Revocations() cache.Cleaner {
	c, _ := s.revoked.(cache.Cleaner)
	return c
}
