package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusgate/edu-gateway/internal/domain"
)

type memoryIdentityRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Identity
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryIdentityRepository returns an in-process store holding seed.
// Seed entries without an ID get a fresh UUID.
func NewMemoryIdentityRepository(seed ...domain.Identity) IdentityRepository {
	r := &memoryIdentityRepository{
		byID:    make(map[string]*domain.Identity),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
	for i := range seed {
		identity := seed[i]
		_ = r.Create(context.Background(), &identity)
	}
	return r
}

func (r *memoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(identity.Email)
	if _, exists := r.byEmail[key]; exists {
		return fmt.Errorf("identity %s already exists", identity.Email)
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := r.now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	stored := *identity
	r.byID[stored.ID] = &stored
	r.byEmail[key] = stored.ID
	return nil
}

func (r *memoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	out := *identity
	return &out, nil
}

func (r *memoryIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *memoryIdentityRepository) Upsert(_ context.Context, profile domain.OAuthProfile) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := normalizeEmail(profile.Email)
	if id, ok := r.byEmail[key]; ok {
		existing := r.byID[id]
		if existing.GoogleID == nil && profile.ID != "" {
			googleID := profile.ID
			existing.GoogleID = &googleID
		}
		if existing.Name == "" {
			existing.Name = profile.Name
		}
		existing.Picture = profile.Picture
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}

	identity := &domain.Identity{
		ID:        uuid.NewString(),
		Email:     key,
		Name:      profile.Name,
		Picture:   profile.Picture,
		Role:      domain.RoleStudent,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile.ID != "" {
		googleID := profile.ID
		identity.GoogleID = &googleID
	}
	r.byID[identity.ID] = identity
	r.byEmail[key] = identity.ID

	out := *identity
	return &out, nil
}

func (r *memoryIdentityRepository) List(_ context.Context, limit, offset int) ([]domain.Identity, error) {
	r.mu.RLock()
	all := make([]domain.Identity, 0, len(r.byID))
	for _, identity := range r.byID {
		all = append(all, *identity)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].Email < all[j].Email
	})

	if offset >= len(all) {
		return []domain.Identity{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *memoryIdentityRepository) Ping(context.Context) error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DemoIdentities returns the development accounts, one per role, with
// passwords digested by hash.
func DemoIdentities(hash func(string) string) []domain.Identity {
	return []domain.Identity{
		{Email: "admin@example.com", Name: "Ada Admin", Role: domain.RoleAdmin, PasswordHash: hash("admin123"), Active: true},
		{Email: "coordinator@example.com", Name: "Cora Coordinator", Role: domain.RoleCoordinator, PasswordHash: hash("coord123"), Active: true},
		{Email: "teacher@example.com", Name: "Theo Teacher", Role: domain.RoleTeacher, PasswordHash: hash("teacher123"), Active: true},
		{Email: "student@example.com", Name: "Sam Student", Role: domain.RoleStudent, PasswordHash: hash("student123"), Active: true},
	}
}
