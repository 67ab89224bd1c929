package service

import (
	"context"

	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// IdentityService serves directory reads for administrators.
type IdentityService struct {
	identities repository.IdentityRepository
}

// NewIdentityService builds the service.
func NewIdentityService(identities repository.IdentityRepository) *IdentityService {
	return &IdentityService{identities: identities}
}

// List returns one page of identities. page starts at 1.
func (s *IdentityService) List(ctx context.Context, page, pageSize int) ([]domain.Identity, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	list, err := s.identities.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, unavailable("identity store", err)
	}
	return list, nil
}
