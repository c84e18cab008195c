// Package promo implements the promotional code policy engine: deriving a
// code's current status, deciding room applicability, and computing the
// discount a code yields for a price. Every operation is a pure function
// over the record it is given; nothing here touches storage, transport, or
// the clock, which makes the package safe for unlimited concurrent use.
package promo

import (
	"math"
	"time"

	"github.com/aubergehq/promo-service/internal/domain"
)

// Status classifies the current usability of a promo code.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// Reason identifies why a code could not be applied to a booking.
type Reason string

const (
	ReasonRoomNotEligible Reason = "room_not_eligible"
	ReasonStayTooShort    Reason = "stay_too_short"
	ReasonInactive        Reason = Reason(StatusInactive)
	ReasonExpired         Reason = Reason(StatusExpired)
	ReasonExhausted       Reason = Reason(StatusExhausted)
)

// EvaluateStatus derives the display status of a code at the given instant.
// The checks form an ordered chain and the first match wins: administrative
// disablement overrides everything else, and an ended window overrides the
// redemption cap, so a code that is both past its window and over its cap
// reports expired. A code whose window has not started yet reports active;
// the admin dashboard has never distinguished a pending state, so no fifth
// status is introduced here.
func EvaluateStatus(c *domain.PromoCode, now time.Time) Status {
	if !c.Enabled {
		return StatusInactive
	}
	if now.After(c.ValidUntil) {
		return StatusExpired
	}
	if c.MaxRedemptions > 0 && c.RedemptionCount >= c.MaxRedemptions {
		return StatusExhausted
	}
	return StatusActive
}

// ComputeDiscount computes the monetary reduction for the given discount
// mode, nominal value, and target price. It never fails: a non-positive or
// NaN price or value yields 0, a percentage value is clamped to 100, a
// fixed discount is clamped to the price so the total can never go
// negative, and an unrecognized mode yields 0 rather than blocking a
// transaction. No rounding is performed; display formatting is the
// caller's concern.
func ComputeDiscount(mode string, value, basePrice float64) float64 {
	if math.IsNaN(basePrice) || math.IsNaN(value) {
		return 0
	}
	if basePrice <= 0 || value <= 0 {
		return 0
	}

	switch mode {
	case domain.DiscountModePercentage:
		return basePrice * math.Min(value, 100) / 100
	case domain.DiscountModeFixed:
		return math.Min(value, basePrice)
	default:
		return 0
	}
}

// IsApplicable reports whether the code's room-scoping rules permit its use
// for the given room. The all-rooms flag wins unconditionally, even when an
// explicit room set is present alongside it.
func IsApplicable(c *domain.PromoCode, roomID string) bool {
	if c.AppliesToAllRooms {
		return true
	}
	for _, id := range c.ApplicableRoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}

// ApplyInput carries the booking context for a TryApply evaluation.
type ApplyInput struct {
	Now       time.Time
	RoomID    string
	Nights    int
	BasePrice float64
}

// Result is the outcome of a TryApply evaluation. On success Eligible is
// true and Discount holds the computed reduction; on failure Reason names
// the first check that rejected the code.
type Result struct {
	Eligible bool    `json:"eligible"`
	Reason   Reason  `json:"reason,omitempty"`
	Discount float64 `json:"discount"`
}

// TryApply runs the full eligibility chain for one booking: room
// applicability, then minimum stay, then the status chain, short-circuiting
// on the first failure. It reads the record and changes nothing; recording
// the redemption (and re-checking the cap at commit time) belongs to the
// persistence layer.
func TryApply(c *domain.PromoCode, in ApplyInput) Result {
	if !IsApplicable(c, in.RoomID) {
		return Result{Reason: ReasonRoomNotEligible}
	}
	if in.Nights < c.MinimumStayNights {
		return Result{Reason: ReasonStayTooShort}
	}
	if status := EvaluateStatus(c, in.Now); status != StatusActive {
		return Result{Reason: Reason(status)}
	}
	return Result{
		Eligible: true,
		Discount: ComputeDiscount(c.DiscountMode, c.DiscountValue, in.BasePrice),
	}
}
