package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aubergehq/promo-service/internal/promo"
	"github.com/aubergehq/promo-service/internal/service"
	"github.com/aubergehq/promo-service/pkg/httputil"
	"github.com/aubergehq/promo-service/pkg/pagination"
	"github.com/aubergehq/promo-service/pkg/validator"
)

// PromoCodeHandler handles HTTP requests for promo code endpoints.
type PromoCodeHandler struct {
	service *service.PromoCodeService
	logger  *slog.Logger
}

// NewPromoCodeHandler creates a new promo code HTTP handler.
func NewPromoCodeHandler(svc *service.PromoCodeService, logger *slog.Logger) *PromoCodeHandler {
	return &PromoCodeHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePromoCodeRequest is the JSON request body for creating a promo code.
type CreatePromoCodeRequest struct {
	Code              string   `json:"code" validate:"required,min=1,max=50"`
	Description       string   `json:"description" validate:"max=500"`
	DiscountMode      string   `json:"discount_mode" validate:"required,oneof=percentage fixed"`
	DiscountValue     float64  `json:"discount_value" validate:"required,gt=0"`
	AppliesToAllRooms bool     `json:"applies_to_all_rooms"`
	ApplicableRoomIDs []string `json:"applicable_room_ids"`
	ValidFrom         string   `json:"valid_from" validate:"required"`
	ValidUntil        string   `json:"valid_until" validate:"required"`
	MaxRedemptions    *int     `json:"max_redemptions" validate:"omitempty,gte=0"`
	MinimumStayNights *int     `json:"minimum_stay_nights" validate:"omitempty,gte=1"`
	Enabled           bool     `json:"enabled"`
}

// UpdatePromoCodeRequest is the JSON request body for updating a promo code.
// All fields are required: updates replace the full record.
type UpdatePromoCodeRequest struct {
	Code              string   `json:"code" validate:"required,min=1,max=50"`
	Description       string   `json:"description" validate:"max=500"`
	DiscountMode      string   `json:"discount_mode" validate:"required,oneof=percentage fixed"`
	DiscountValue     float64  `json:"discount_value" validate:"required,gt=0"`
	AppliesToAllRooms bool     `json:"applies_to_all_rooms"`
	ApplicableRoomIDs []string `json:"applicable_room_ids"`
	ValidFrom         string   `json:"valid_from" validate:"required"`
	ValidUntil        string   `json:"valid_until" validate:"required"`
	MaxRedemptions    int      `json:"max_redemptions" validate:"gte=0"`
	MinimumStayNights int      `json:"minimum_stay_nights" validate:"gte=1"`
	Enabled           bool     `json:"enabled"`
}

// VerifyPromoCodeRequest is the JSON request body for verifying a promo code.
type VerifyPromoCodeRequest struct {
	Code      string  `json:"code" validate:"required"`
	RoomID    string  `json:"room_id"`
	Nights    int     `json:"nights" validate:"required,gte=1"`
	BasePrice float64 `json:"base_price" validate:"gte=0"`
}

// RedeemPromoCodeRequest is the JSON request body for redeeming a promo code.
type RedeemPromoCodeRequest struct {
	Code      string  `json:"code" validate:"required"`
	BookingID string  `json:"booking_id" validate:"required"`
	RoomID    string  `json:"room_id"`
	Nights    int     `json:"nights" validate:"required,gte=1"`
	BasePrice float64 `json:"base_price" validate:"gte=0"`
}

// --- Handlers ---

// CreatePromoCode handles POST /api/v1/promo-codes
func (h *PromoCodeHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CreatePromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "valid_from must be in RFC3339 format"},
		})
		return
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "valid_until must be in RFC3339 format"},
		})
		return
	}

	input := &service.CreatePromoCodeInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountMode:      req.DiscountMode,
		DiscountValue:     req.DiscountValue,
		AppliesToAllRooms: req.AppliesToAllRooms,
		ApplicableRoomIDs: req.ApplicableRoomIDs,
		ValidFrom:         validFrom,
		ValidUntil:        validUntil,
		MaxRedemptions:    req.MaxRedemptions,
		MinimumStayNights: req.MinimumStayNights,
		Enabled:           req.Enabled,
	}

	promoCode, err := h.service.CreatePromoCode(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: promoCode})
}

// ListPromoCodes handles GET /api/v1/promo-codes
func (h *PromoCodeHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := service.PromoCodeFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("enabled"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			filter.Enabled = &enabled
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := promo.Status(v)
		filter.Status = &status
	}

	promos, total, err := h.service.ListPromoCodes(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(promos, total, filter.Page, filter.PerPage))
}

// GetPromoCode handles GET /api/v1/promo-codes/{id}
func (h *PromoCodeHandler) GetPromoCode(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	promoCode, err := h.service.GetPromoCode(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: promoCode})
}

// UpdatePromoCode handles PUT /api/v1/promo-codes/{id}
func (h *PromoCodeHandler) UpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdatePromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "valid_from must be in RFC3339 format"},
		})
		return
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "valid_until must be in RFC3339 format"},
		})
		return
	}

	input := &service.UpdatePromoCodeInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountMode:      req.DiscountMode,
		DiscountValue:     req.DiscountValue,
		AppliesToAllRooms: req.AppliesToAllRooms,
		ApplicableRoomIDs: req.ApplicableRoomIDs,
		ValidFrom:         validFrom,
		ValidUntil:        validUntil,
		MaxRedemptions:    req.MaxRedemptions,
		MinimumStayNights: req.MinimumStayNights,
		Enabled:           req.Enabled,
	}

	promoCode, err := h.service.UpdatePromoCode(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: promoCode})
}

// DeletePromoCode handles DELETE /api/v1/promo-codes/{id}
func (h *PromoCodeHandler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeletePromoCode(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /api/v1/promo-codes/stats
func (h *PromoCodeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// VerifyPromoCode handles POST /api/v1/promo-codes/verify
func (h *PromoCodeHandler) VerifyPromoCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req VerifyPromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	verification, err := h.service.VerifyPromoCode(r.Context(), &service.VerifyInput{
		Code:      req.Code,
		RoomID:    req.RoomID,
		Nights:    req.Nights,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: verification})
}

// RedeemPromoCode handles POST /api/v1/promo-codes/redeem
func (h *PromoCodeHandler) RedeemPromoCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req RedeemPromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	redemption, err := h.service.RedeemPromoCode(r.Context(), &service.RedeemInput{
		Code:      req.Code,
		BookingID: req.BookingID,
		RoomID:    req.RoomID,
		Nights:    req.Nights,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: redemption})
}
