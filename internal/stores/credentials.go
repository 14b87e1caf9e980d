package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCredentialNotFound is returned when no registration record exists for an identifier.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExists is returned when a registration record already exists for an identifier.
	ErrCredentialExists = errors.New("credential already exists")
	// ErrCredentialBackend is returned when Redis is unavailable.
	ErrCredentialBackend = errors.New("credential backend unavailable")
)

// CredentialStore persists registration records (password files) and the
// optional client-encrypted bundle stored alongside them. Records are
// write-once: there is no update path, only an out-of-band deletion.
type CredentialStore struct {
	redis        redis.UniversalClient
	credPrefix   string
	bundlePrefix string
}

// NewCredentialStore creates a [CredentialStore] backed by the given Redis client.
func NewCredentialStore(redisClient redis.UniversalClient) *CredentialStore {
	return &CredentialStore{
		redis:        redisClient,
		credPrefix:   "cred",
		bundlePrefix: "bundle",
	}
}

func (s *CredentialStore) credKey(identifier string) string {
	return s.credPrefix + ":" + identifier
}

func (s *CredentialStore) bundleKey(identifier string) string {
	return s.bundlePrefix + ":" + identifier
}

// GetRecord returns the registration record for the identifier, or
// ErrCredentialNotFound if none exists.
func (s *CredentialStore) GetRecord(ctx context.Context, identifier string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.credKey(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialBackend, err)
	}
	return data, nil
}

// PutRecord stores the registration record if and only if none exists.
// The NX write closes most of the duplicate-registration race left open by
// the caller's read-before-write existence check; under a multi-replica
// eventually consistent deployment two concurrent first registrations can
// still both land, which is an accepted trade-off.
func (s *CredentialStore) PutRecord(ctx context.Context, identifier string, record []byte) error {
	ok, err := s.redis.SetNX(ctx, s.credKey(identifier), record, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialBackend, err)
	}
	if !ok {
		return ErrCredentialExists
	}
	return nil
}

// GetBundle returns the encrypted bundle for the identifier. Absence is a
// valid state and reported as (nil, false, nil), not an error.
func (s *CredentialStore) GetBundle(ctx context.Context, identifier string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.bundleKey(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrCredentialBackend, err)
	}
	return data, true, nil
}

// PutBundle stores the encrypted bundle for the identifier.
func (s *CredentialStore) PutBundle(ctx context.Context, identifier string, bundle []byte) error {
	if err := s.redis.Set(ctx, s.bundleKey(identifier), bundle, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialBackend, err)
	}
	return nil
}

// Ping reports point-in-time backend availability for readiness checks.
func (s *CredentialStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialBackend, err)
	}
	return nil
}
