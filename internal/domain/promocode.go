package domain

import (
	"time"
)

// Discount mode constants.
const (
	DiscountModePercentage = "percentage"
	DiscountModeFixed      = "fixed"
)

// PromoCode represents a promotional code record as exchanged with the
// admin dashboard and the booking flow. The code string is the human-facing
// key and is stored upper-cased; uniqueness is enforced by the database.
type PromoCode struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Description       string    `json:"description"`
	DiscountMode      string    `json:"discount_mode"`
	DiscountValue     float64   `json:"discount_value"`
	AppliesToAllRooms bool      `json:"applies_to_all_rooms"`
	ApplicableRoomIDs []string  `json:"applicable_room_ids"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidUntil        time.Time `json:"valid_until"`
	MaxRedemptions    int       `json:"max_redemptions"`
	RedemptionCount   int       `json:"redemption_count"`
	MinimumStayNights int       `json:"minimum_stay_nights"`
	Enabled           bool      `json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Redemption records a single successful application of a promo code to a
// finalized booking.
type Redemption struct {
	ID              string    `json:"id"`
	PromoCodeID     string    `json:"promo_code_id"`
	Code            string    `json:"code"`
	BookingID       string    `json:"booking_id"`
	RoomID          string    `json:"room_id"`
	Nights          int       `json:"nights"`
	DiscountApplied float64   `json:"discount_applied"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidDiscountModes returns the set of valid discount modes.
func ValidDiscountModes() []string {
	return []string{
		DiscountModePercentage,
		DiscountModeFixed,
	}
}

// IsValidDiscountMode checks whether the given mode string is a valid discount mode.
func IsValidDiscountMode(mode string) bool {
	for _, m := range ValidDiscountModes() {
		if m == mode {
			return true
		}
	}
	return false
}
