package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aubergehq/promo-service/internal/domain"
	"github.com/aubergehq/promo-service/internal/event"
	"github.com/aubergehq/promo-service/internal/promo"
	"github.com/aubergehq/promo-service/internal/repository"
	apperrors "github.com/aubergehq/promo-service/pkg/errors"
)

// Defaults applied when the corresponding create field is omitted.
const (
	DefaultMaxRedemptions    = 100
	DefaultMinimumStayNights = 1
)

// PromoCache is the read-through cache the service consults on the
// verification hot path. A nil cache disables caching entirely.
type PromoCache interface {
	Get(ctx context.Context, code string) *domain.PromoCode
	Set(ctx context.Context, promo *domain.PromoCode)
	Invalidate(ctx context.Context, code string) error
}

// PromoCodeService implements the business logic for promo code operations.
type PromoCodeService struct {
	repo     repository.PromoCodeRepository
	cache    PromoCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewPromoCodeService creates a new promo code service. The cache may be nil.
func NewPromoCodeService(repo repository.PromoCodeRepository, cache PromoCache, producer *event.Producer, logger *slog.Logger) *PromoCodeService {
	return &PromoCodeService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// PromoCodeView is a promo code together with its derived status. Status is
// never stored; it is computed from the record and the current time.
type PromoCodeView struct {
	domain.PromoCode
	Status promo.Status `json:"status"`
}

func view(p *domain.PromoCode, now time.Time) PromoCodeView {
	return PromoCodeView{PromoCode: *p, Status: promo.EvaluateStatus(p, now)}
}

// CreatePromoCodeInput holds the parameters for creating a promo code.
// MaxRedemptions and MinimumStayNights fall back to service defaults when nil.
type CreatePromoCodeInput struct {
	Code              string
	Description       string
	DiscountMode      string
	DiscountValue     float64
	AppliesToAllRooms bool
	ApplicableRoomIDs []string
	ValidFrom         time.Time
	ValidUntil        time.Time
	MaxRedemptions    *int
	MinimumStayNights *int
	Enabled           bool
}

// UpdatePromoCodeInput holds the parameters for updating a promo code.
// Updates are full-record replacements; the redemption count is preserved.
type UpdatePromoCodeInput struct {
	Code              string
	Description       string
	DiscountMode      string
	DiscountValue     float64
	AppliesToAllRooms bool
	ApplicableRoomIDs []string
	ValidFrom         time.Time
	ValidUntil        time.Time
	MaxRedemptions    int
	MinimumStayNights int
	Enabled           bool
}

// PromoCodeFilter defines list filter criteria. Status filters on the
// derived status of each code within the requested page.
type PromoCodeFilter struct {
	Enabled *bool
	Status  *promo.Status
	Page    int
	PerPage int
}

// VerifyInput holds the parameters for verifying a promo code against a
// prospective booking.
type VerifyInput struct {
	Code      string
	RoomID    string
	Nights    int
	BasePrice float64
}

// Verification is the outcome of a promo code verification.
type Verification struct {
	Valid    bool         `json:"valid"`
	Reason   promo.Reason `json:"reason,omitempty"`
	Discount float64      `json:"discount"`
	Code     string       `json:"code"`
}

// ReasonNotFound is reported when the code does not exist at all. The
// evaluation chain never produces it; only the lookup can.
const ReasonNotFound promo.Reason = "not_found"

// RedeemInput holds the parameters for redeeming a promo code against a
// confirmed booking.
type RedeemInput struct {
	Code      string
	BookingID string
	RoomID    string
	Nights    int
	BasePrice float64
}

// Stats summarizes the promo code inventory by derived status.
type Stats struct {
	Total            int `json:"total"`
	Active           int `json:"active"`
	Inactive         int `json:"inactive"`
	Expired          int `json:"expired"`
	Exhausted        int `json:"exhausted"`
	TotalRedemptions int `json:"total_redemptions"`
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *PromoCodeService) validateDiscount(mode string, value float64) error {
	if !domain.IsValidDiscountMode(mode) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid discount mode %q, must be one of: %s", mode, strings.Join(domain.ValidDiscountModes(), ", ")))
	}
	if value <= 0 {
		return apperrors.InvalidInput("discount value must be positive")
	}
	if mode == domain.DiscountModePercentage && value > 100 {
		return apperrors.InvalidInput("percentage discount must not exceed 100")
	}
	return nil
}

// CreatePromoCode creates a new promo code with the given input.
func (s *PromoCodeService) CreatePromoCode(ctx context.Context, input *CreatePromoCodeInput) (*PromoCodeView, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("promo code is required")
	}
	if err := s.validateDiscount(input.DiscountMode, input.DiscountValue); err != nil {
		return nil, err
	}
	if input.ValidUntil.Before(input.ValidFrom) {
		return nil, apperrors.InvalidInput("valid_until must not be before valid_from")
	}

	maxRedemptions := DefaultMaxRedemptions
	if input.MaxRedemptions != nil {
		if *input.MaxRedemptions < 0 {
			return nil, apperrors.InvalidInput("max redemptions must not be negative")
		}
		maxRedemptions = *input.MaxRedemptions
	}

	minimumStay := DefaultMinimumStayNights
	if input.MinimumStayNights != nil {
		if *input.MinimumStayNights < 1 {
			return nil, apperrors.InvalidInput("minimum stay must be at least 1 night")
		}
		minimumStay = *input.MinimumStayNights
	}

	roomIDs := input.ApplicableRoomIDs
	// The all-rooms flag makes an explicit room set meaningless; drop it so
	// stale IDs never linger in storage.
	if input.AppliesToAllRooms || roomIDs == nil {
		roomIDs = []string{}
	}

	now := time.Now().UTC()
	promoCode := &domain.PromoCode{
		ID:                uuid.New().String(),
		Code:              code,
		Description:       input.Description,
		DiscountMode:      input.DiscountMode,
		DiscountValue:     input.DiscountValue,
		AppliesToAllRooms: input.AppliesToAllRooms,
		ApplicableRoomIDs: roomIDs,
		ValidFrom:         input.ValidFrom,
		ValidUntil:        input.ValidUntil,
		MaxRedemptions:    maxRedemptions,
		RedemptionCount:   0,
		MinimumStayNights: minimumStay,
		Enabled:           input.Enabled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, promoCode); err != nil {
		return nil, fmt.Errorf("create promo code: %w", err)
	}

	if err := s.producer.PublishPromoCodeCreated(ctx, promoCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promocode.created event",
			slog.String("promo_code_id", promoCode.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "promo code created",
		slog.String("promo_code_id", promoCode.ID),
		slog.String("code", promoCode.Code),
	)

	v := view(promoCode, now)
	return &v, nil
}

// GetPromoCode retrieves a promo code by its ID.
func (s *PromoCodeService) GetPromoCode(ctx context.Context, id string) (*PromoCodeView, error) {
	promoCode, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promo code by id: %w", err)
	}
	v := view(promoCode, time.Now().UTC())
	return &v, nil
}

// ListPromoCodes returns a filtered, paginated list of promo codes with
// their derived statuses. The status filter applies after evaluation, so it
// narrows the returned page rather than the stored set.
func (s *PromoCodeService) ListPromoCodes(ctx context.Context, filter PromoCodeFilter) ([]PromoCodeView, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	promos, total, err := s.repo.List(ctx, repository.PromoCodeFilter{
		Enabled: filter.Enabled,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list promo codes: %w", err)
	}

	now := time.Now().UTC()
	views := make([]PromoCodeView, 0, len(promos))
	for i := range promos {
		v := view(&promos[i], now)
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		views = append(views, v)
	}

	return views, total, nil
}

// UpdatePromoCode replaces all editable fields of an existing promo code.
// The redemption count is carried over untouched.
func (s *PromoCodeService) UpdatePromoCode(ctx context.Context, id string, input *UpdatePromoCodeInput) (*PromoCodeView, error) {
	promoCode, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promo code for update: %w", err)
	}
	previousCode := promoCode.Code

	code := normalizeCode(input.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("promo code is required")
	}
	if err := s.validateDiscount(input.DiscountMode, input.DiscountValue); err != nil {
		return nil, err
	}
	if input.ValidUntil.Before(input.ValidFrom) {
		return nil, apperrors.InvalidInput("valid_until must not be before valid_from")
	}
	if input.MaxRedemptions < 0 {
		return nil, apperrors.InvalidInput("max redemptions must not be negative")
	}
	if input.MinimumStayNights < 1 {
		return nil, apperrors.InvalidInput("minimum stay must be at least 1 night")
	}

	roomIDs := input.ApplicableRoomIDs
	if input.AppliesToAllRooms || roomIDs == nil {
		roomIDs = []string{}
	}

	promoCode.Code = code
	promoCode.Description = input.Description
	promoCode.DiscountMode = input.DiscountMode
	promoCode.DiscountValue = input.DiscountValue
	promoCode.AppliesToAllRooms = input.AppliesToAllRooms
	promoCode.ApplicableRoomIDs = roomIDs
	promoCode.ValidFrom = input.ValidFrom
	promoCode.ValidUntil = input.ValidUntil
	promoCode.MaxRedemptions = input.MaxRedemptions
	promoCode.MinimumStayNights = input.MinimumStayNights
	promoCode.Enabled = input.Enabled

	if err := s.repo.Update(ctx, promoCode); err != nil {
		return nil, fmt.Errorf("update promo code: %w", err)
	}

	s.invalidateCache(ctx, previousCode)
	if promoCode.Code != previousCode {
		s.invalidateCache(ctx, promoCode.Code)
	}

	if err := s.producer.PublishPromoCodeUpdated(ctx, promoCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promocode.updated event",
			slog.String("promo_code_id", promoCode.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code updated",
		slog.String("promo_code_id", promoCode.ID),
		slog.String("code", promoCode.Code),
	)

	v := view(promoCode, time.Now().UTC())
	return &v, nil
}

// DeletePromoCode removes a promo code permanently.
func (s *PromoCodeService) DeletePromoCode(ctx context.Context, id string) error {
	promoCode, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get promo code for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete promo code: %w", err)
	}

	s.invalidateCache(ctx, promoCode.Code)

	if err := s.producer.PublishPromoCodeDeleted(ctx, promoCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promocode.deleted event",
			slog.String("promo_code_id", promoCode.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code deleted",
		slog.String("promo_code_id", promoCode.ID),
		slog.String("code", promoCode.Code),
	)

	return nil
}

// VerifyPromoCode checks whether a code can be applied to a prospective
// booking. An unknown code is a negative verification, not an error.
func (s *PromoCodeService) VerifyPromoCode(ctx context.Context, input *VerifyInput) (*Verification, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return &Verification{Valid: false, Reason: ReasonNotFound, Code: code}, nil
	}

	promoCode := s.cachedGetByCode(ctx, code)
	if promoCode == nil {
		var err error
		promoCode, err = s.repo.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return &Verification{Valid: false, Reason: ReasonNotFound, Code: code}, nil
			}
			return nil, fmt.Errorf("get promo code for verify: %w", err)
		}
		if s.cache != nil {
			s.cache.Set(ctx, promoCode)
		}
	}

	result := promo.TryApply(promoCode, promo.ApplyInput{
		Now:       time.Now().UTC(),
		RoomID:    input.RoomID,
		Nights:    input.Nights,
		BasePrice: input.BasePrice,
	})

	return &Verification{
		Valid:    result.Eligible,
		Reason:   result.Reason,
		Discount: result.Discount,
		Code:     code,
	}, nil
}

// RedeemPromoCode applies a code to a confirmed booking. The redemption
// counter is incremented with a conditional update that re-checks the cap,
// so a code that went exhausted since verification is rejected here.
func (s *PromoCodeService) RedeemPromoCode(ctx context.Context, input *RedeemInput) (*domain.Redemption, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("promo code is required")
	}
	if input.BookingID == "" {
		return nil, apperrors.InvalidInput("booking id is required")
	}

	promoCode, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get promo code for redeem: %w", err)
	}

	result := promo.TryApply(promoCode, promo.ApplyInput{
		Now:       time.Now().UTC(),
		RoomID:    input.RoomID,
		Nights:    input.Nights,
		BasePrice: input.BasePrice,
	})
	if !result.Eligible {
		return nil, apperrors.NotRedeemable(fmt.Sprintf("promo code cannot be applied: %s", result.Reason))
	}

	incremented, err := s.repo.IncrementRedemption(ctx, promoCode.ID)
	if err != nil {
		return nil, fmt.Errorf("increment redemption count: %w", err)
	}
	if !incremented {
		// Lost the race for the last slot.
		return nil, apperrors.NotRedeemable(fmt.Sprintf("promo code cannot be applied: %s", promo.ReasonExhausted))
	}

	s.invalidateCache(ctx, code)

	redemption := &domain.Redemption{
		ID:              uuid.New().String(),
		PromoCodeID:     promoCode.ID,
		Code:            code,
		BookingID:       input.BookingID,
		RoomID:          input.RoomID,
		Nights:          input.Nights,
		DiscountApplied: result.Discount,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.repo.RecordRedemption(ctx, redemption); err != nil {
		// The counter already moved; losing the audit row must not undo
		// the redemption.
		s.logger.ErrorContext(ctx, "failed to record redemption",
			slog.String("promo_code_id", promoCode.ID),
			slog.String("booking_id", input.BookingID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishPromoCodeRedeemed(ctx, promoCode, redemption); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promocode.redeemed event",
			slog.String("promo_code_id", promoCode.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code redeemed",
		slog.String("promo_code_id", promoCode.ID),
		slog.String("booking_id", input.BookingID),
		slog.Float64("discount_applied", result.Discount),
	)

	return redemption, nil
}

// GetStats computes aggregate statistics over the full promo code inventory.
func (s *PromoCodeService) GetStats(ctx context.Context) (*Stats, error) {
	promos, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load promo codes for stats: %w", err)
	}

	now := time.Now().UTC()
	stats := &Stats{Total: len(promos)}
	for i := range promos {
		stats.TotalRedemptions += promos[i].RedemptionCount
		switch promo.EvaluateStatus(&promos[i], now) {
		case promo.StatusActive:
			stats.Active++
		case promo.StatusInactive:
			stats.Inactive++
		case promo.StatusExpired:
			stats.Expired++
		case promo.StatusExhausted:
			stats.Exhausted++
		}
	}

	return stats, nil
}

func (s *PromoCodeService) cachedGetByCode(ctx context.Context, code string) *domain.PromoCode {
	if s.cache == nil {
		return nil
	}
	return s.cache.Get(ctx, code)
}

func (s *PromoCodeService) invalidateCache(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate promo code cache",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
}
