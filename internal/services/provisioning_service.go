package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"orderdesk/internal/metrics"
	"orderdesk/internal/models"
	"orderdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	distributorUsernamePrefix = "dist-"
	maxSlugLength             = 80
)

// DistributorContact identifies the distributor behind a public submission.
type DistributorContact struct {
	DistributorName string
	Email           string
	Phone           string
	Address         string
}

// ProvisioningService attaches unauthenticated order submissions to a
// per-distributor account, creating the account on first use.
type ProvisioningService struct {
	userRepo repositories.UserRepository
	auth     *AuthService
	orders   *OrderService
}

// NewProvisioningService creates a new ProvisioningService.
func NewProvisioningService(userRepo repositories.UserRepository, auth *AuthService, orders *OrderService) *ProvisioningService {
	return &ProvisioningService{
		userRepo: userRepo,
		auth:     auth,
		orders:   orders,
	}
}

// DistributorUsername derives the account username for a distributor name.
// The same name always yields the same username: accents are folded, case is
// dropped and every run of other characters becomes a single dash.
func DistributorUsername(distributorName string) (string, error) {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), distributorName)
	if err != nil {
		return "", fmt.Errorf("failed to normalize distributor name: %w", err)
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "", invalidField("distributorName", "must contain at least one letter or digit")
	}
	return distributorUsernamePrefix + slug, nil
}

// ResolveOrCreateDistributor returns the account for the distributor name,
// creating a distributor-role account with an unusable random password if
// none exists yet. An account under the derived username that was not
// provisioned here is never reused.
func (s *ProvisioningService) ResolveOrCreateDistributor(ctx context.Context, contact DistributorContact) (*models.User, error) {
	username, err := DistributorUsername(contact.DistributorName)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		// Only accounts this service created may receive public orders.
		if user.Role != models.RoleDistributor || !user.Provisioned {
			return nil, invalidField("distributorName", "is reserved")
		}
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up distributor %s: %w", username, err)
	}

	user, err = s.auth.CreateUser(ctx, NewUser{
		Username:        username,
		Password:        uuid.New().String(),
		DistributorName: strings.TrimSpace(contact.DistributorName),
		Email:           contact.Email,
		Phone:           contact.Phone,
		Address:         contact.Address,
		Provisioned:     true,
	}, models.RoleDistributor)
	if errors.Is(err, ErrDuplicateUsername) {
		// A concurrent submission created it first.
		existing, lookupErr := s.userRepo.GetByUsername(ctx, username)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to look up distributor %s: %w", username, lookupErr)
		}
		if existing.Role != models.RoleDistributor || !existing.Provisioned {
			return nil, invalidField("distributorName", "is reserved")
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to provision distributor %s: %w", username, err)
	}

	metrics.DistributorProvisioned()
	log.Info().Str("username", username).Str("user_id", user.ID).Msg("distributor provisioned from public submission")
	return user, nil
}

// SubmitPublicOrder records an order on behalf of the named distributor.
func (s *ProvisioningService) SubmitPublicOrder(ctx context.Context, contact DistributorContact, in OrderInput) (*models.Order, error) {
	// Reject bad order input before an account is provisioned for it.
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	user, err := s.ResolveOrCreateDistributor(ctx, contact)
	if err != nil {
		return nil, err
	}
	caller := models.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	return s.orders.CreateOrder(ctx, caller, in, SourcePublic)
}
