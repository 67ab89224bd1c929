package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when a state is unknown, expired or already consumed.
var ErrStateNotFound = errors.New("oauth state not found")

// OAuthStateRepository holds the PKCE code challenge of each pending
// authorization attempt, keyed by the OAuth state parameter. A state can be
// consumed at most once.
type OAuthStateRepository interface {
	Save(ctx context.Context, state, codeChallenge string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (string, error)
}

const oauthStateKeyPrefix = "edu-gateway:oauth_state:"

type redisOAuthStateRepository struct {
	client *redis.Client
}

// NewRedisOAuthStateRepository returns a Redis-backed implementation.
func NewRedisOAuthStateRepository(client *redis.Client) OAuthStateRepository {
	return &redisOAuthStateRepository{client: client}
}

func (r *redisOAuthStateRepository) Save(ctx context.Context, state, codeChallenge string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, oauthStateKeyPrefix+state, codeChallenge, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("oauth state already exists")
	}
	return nil
}

func (r *redisOAuthStateRepository) Consume(ctx context.Context, state string) (string, error) {
	challenge, err := r.client.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", err
	}
	return challenge, nil
}

type memoryStateEntry struct {
	challenge string
	expiresAt time.Time
}

type memoryOAuthStateRepository struct {
	mu      sync.Mutex
	entries map[string]memoryStateEntry
	now     func() time.Time
}

// NewMemoryOAuthStateRepository returns an in-process implementation for
// single-instance deployments and tests.
func NewMemoryOAuthStateRepository(now func() time.Time) OAuthStateRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryOAuthStateRepository{
		entries: make(map[string]memoryStateEntry),
		now:     now,
	}
}

func (r *memoryOAuthStateRepository) Save(_ context.Context, state, codeChallenge string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictExpired(now)
	if _, exists := r.entries[state]; exists {
		return errors.New("oauth state already exists")
	}
	r.entries[state] = memoryStateEntry{challenge: codeChallenge, expiresAt: now.Add(ttl)}
	return nil
}

func (r *memoryOAuthStateRepository) Consume(_ context.Context, state string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[state]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(r.entries, state)
	if !r.now().Before(entry.expiresAt) {
		return "", ErrStateNotFound
	}
	return entry.challenge, nil
}

func (r *memoryOAuthStateRepository) evictExpired(now time.Time) {
	for state, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, state)
		}
	}
}
