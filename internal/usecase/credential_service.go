package usecase

import (
	"context"
	"fmt"
	"strings"

	"growthdash/internal/domain"
	"growthdash/pkg/logger"
)

// CredentialService reports ad platform connection status.
type CredentialService struct {
	store  domain.CredentialStore
	logger *logger.Logger
}

func NewCredentialService(store domain.CredentialStore, logger *logger.Logger) *CredentialService {
	return &CredentialService{store: store, logger: logger}
}

// Status returns the connection status of platform.
func (s *CredentialService) Status(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	platform = domain.NormalizePlatform(platform)
	if platform == "" || strings.ContainsAny(platform, "/?&=") {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, platform)
	}

	status, err := s.store.CredentialStatus(ctx, platform)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("platform", platform).Error("Failed to read credential status")
		return nil, fmt.Errorf("%w: credential status: %w", domain.ErrFetchFailed, err)
	}
	return status, nil
}
