package repository

import (
	"context"

	"github.com/aubergehq/promo-service/internal/domain"
)

// PromoCodeFilter defines filter criteria for listing promo codes.
type PromoCodeFilter struct {
	Enabled *bool
	Page    int
	PerPage int
}

// PromoCodeRepository defines the interface for promo code persistence operations.
type PromoCodeRepository interface {
	// Create inserts a new promo code into the store.
	Create(ctx context.Context, promo *domain.PromoCode) error

	// GetByID retrieves a promo code by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.PromoCode, error)

	// GetByCode retrieves a promo code by its normalized code string.
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)

	// List returns promo codes matching the given filter along with the total count.
	List(ctx context.Context, filter PromoCodeFilter) ([]domain.PromoCode, int, error)

	// All returns every promo code, newest first. Used for aggregate statistics.
	All(ctx context.Context) ([]domain.PromoCode, error)

	// Update replaces all mutable fields of an existing promo code. The
	// redemption count is never written; it only moves through
	// IncrementRedemption.
	Update(ctx context.Context, promo *domain.PromoCode) error

	// Delete removes a promo code by its ID.
	Delete(ctx context.Context, id string) error

	// IncrementRedemption atomically increments the redemption count,
	// re-checking the cap in the same statement. It returns false when the
	// cap was already reached and the count was left untouched.
	IncrementRedemption(ctx context.Context, id string) (bool, error)

	// RecordRedemption records a single redemption entry.
	RecordRedemption(ctx context.Context, redemption *domain.Redemption) error
}
