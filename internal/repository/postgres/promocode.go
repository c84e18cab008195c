package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aubergehq/promo-service/internal/domain"
	"github.com/aubergehq/promo-service/internal/repository"
	"github.com/aubergehq/promo-service/pkg/database"
	apperrors "github.com/aubergehq/promo-service/pkg/errors"
)

const promoCodeColumns = `id, code, description, discount_mode, discount_value,
	   applies_to_all_rooms, applicable_room_ids, valid_from, valid_until,
	   max_redemptions, redemption_count, minimum_stay_nights, enabled,
	   created_at, updated_at`

// PromoCodeRepository implements repository.PromoCodeRepository using PostgreSQL.
type PromoCodeRepository struct {
	db database.DBTX
}

// NewPromoCodeRepository creates a new PostgreSQL-backed promo code repository.
func NewPromoCodeRepository(db database.DBTX) *PromoCodeRepository {
	return &PromoCodeRepository{db: db}
}

// Create inserts a new promo code into the database.
func (r *PromoCodeRepository) Create(ctx context.Context, p *domain.PromoCode) error {
	roomIDsJSON, err := json.Marshal(p.ApplicableRoomIDs)
	if err != nil {
		return fmt.Errorf("marshal applicable_room_ids: %w", err)
	}

	query := `
		INSERT INTO promo_codes (
			id, code, description, discount_mode, discount_value,
			applies_to_all_rooms, applicable_room_ids, valid_from, valid_until,
			max_redemptions, redemption_count, minimum_stay_nights, enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Code,
		p.Description,
		p.DiscountMode,
		p.DiscountValue,
		p.AppliesToAllRooms,
		roomIDsJSON,
		p.ValidFrom,
		p.ValidUntil,
		p.MaxRedemptions,
		p.RedemptionCount,
		p.MinimumStayNights,
		p.Enabled,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo code", "code", p.Code)
		}
		return fmt.Errorf("insert promo code: %w", err)
	}

	return nil
}

// GetByID retrieves a promo code by its ID.
func (r *PromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE id = $1`, promoCodeColumns)
	return r.scanPromoCode(ctx, query, id)
}

// GetByCode retrieves a promo code by its normalized code string. This is the
// hot path for verification and redemption, so it carries a tracing span.
func (r *PromoCodeRepository) GetByCode(ctx context.Context, code string) (p *domain.PromoCode, err error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE code = $1`, promoCodeColumns)

	ctx, end := database.TraceQuery(ctx, "GetPromoCodeByCode", query)
	defer func() { end(err) }()

	return r.scanPromoCode(ctx, query, code)
}

// List returns promo codes matching the given filter with the total count.
func (r *PromoCodeRepository) List(ctx context.Context, filter repository.PromoCodeFilter) ([]domain.PromoCode, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Enabled != nil {
		conditions = append(conditions, fmt.Sprintf("enabled = $%d", argIndex))
		args = append(args, *filter.Enabled)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM promo_codes
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		promoCodeColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promo codes: %w", err)
	}
	defer rows.Close()

	var (
		promos     []domain.PromoCode
		totalCount int
	)

	for rows.Next() {
		var (
			p           domain.PromoCode
			roomIDsJSON []byte
		)

		if err := rows.Scan(
			&p.ID,
			&p.Code,
			&p.Description,
			&p.DiscountMode,
			&p.DiscountValue,
			&p.AppliesToAllRooms,
			&roomIDsJSON,
			&p.ValidFrom,
			&p.ValidUntil,
			&p.MaxRedemptions,
			&p.RedemptionCount,
			&p.MinimumStayNights,
			&p.Enabled,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan promo code row: %w", err)
		}

		if err := unmarshalRoomIDs(roomIDsJSON, &p); err != nil {
			return nil, 0, err
		}

		promos = append(promos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promo code rows: %w", err)
	}

	if promos == nil {
		promos = []domain.PromoCode{}
	}

	return promos, totalCount, nil
}

// All returns every promo code, newest first.
func (r *PromoCodeRepository) All(ctx context.Context) ([]domain.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes ORDER BY created_at DESC`, promoCodeColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all promo codes: %w", err)
	}
	defer rows.Close()

	var promos []domain.PromoCode
	for rows.Next() {
		var (
			p           domain.PromoCode
			roomIDsJSON []byte
		)

		if err := rows.Scan(
			&p.ID,
			&p.Code,
			&p.Description,
			&p.DiscountMode,
			&p.DiscountValue,
			&p.AppliesToAllRooms,
			&roomIDsJSON,
			&p.ValidFrom,
			&p.ValidUntil,
			&p.MaxRedemptions,
			&p.RedemptionCount,
			&p.MinimumStayNights,
			&p.Enabled,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan promo code row: %w", err)
		}

		if err := unmarshalRoomIDs(roomIDsJSON, &p); err != nil {
			return nil, err
		}

		promos = append(promos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promo code rows: %w", err)
	}

	if promos == nil {
		promos = []domain.PromoCode{}
	}

	return promos, nil
}

// Update replaces all mutable fields of an existing promo code. The
// redemption count is deliberately absent from the SET list.
func (r *PromoCodeRepository) Update(ctx context.Context, p *domain.PromoCode) error {
	roomIDsJSON, err := json.Marshal(p.ApplicableRoomIDs)
	if err != nil {
		return fmt.Errorf("marshal applicable_room_ids: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promo_codes
		SET code = $1, description = $2, discount_mode = $3, discount_value = $4,
		    applies_to_all_rooms = $5, applicable_room_ids = $6, valid_from = $7,
		    valid_until = $8, max_redemptions = $9, minimum_stay_nights = $10,
		    enabled = $11, updated_at = $12
		WHERE id = $13`

	ct, err := r.db.Exec(ctx, query,
		p.Code,
		p.Description,
		p.DiscountMode,
		p.DiscountValue,
		p.AppliesToAllRooms,
		roomIDsJSON,
		p.ValidFrom,
		p.ValidUntil,
		p.MaxRedemptions,
		p.MinimumStayNights,
		p.Enabled,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo code", "code", p.Code)
		}
		return fmt.Errorf("update promo code: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo code", p.ID)
	}

	return nil
}

// Delete removes a promo code by its ID.
func (r *PromoCodeRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promo code: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo code", id)
	}

	return nil
}

// IncrementRedemption atomically increments the redemption count while
// re-checking the cap inside the same statement, so two concurrent
// redemptions of the last slot cannot both succeed.
func (r *PromoCodeRepository) IncrementRedemption(ctx context.Context, id string) (ok bool, err error) {
	query := `
		UPDATE promo_codes
		SET redemption_count = redemption_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND (max_redemptions = 0 OR redemption_count < max_redemptions)`

	ctx, end := database.TraceQuery(ctx, "IncrementRedemption", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("increment redemption count: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// RecordRedemption records a single redemption entry.
func (r *PromoCodeRepository) RecordRedemption(ctx context.Context, redemption *domain.Redemption) error {
	query := `
		INSERT INTO promo_redemptions (id, promo_code_id, code, booking_id, room_id, nights, discount_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		redemption.ID,
		redemption.PromoCodeID,
		redemption.Code,
		redemption.BookingID,
		redemption.RoomID,
		redemption.Nights,
		redemption.DiscountApplied,
		redemption.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record redemption: %w", err)
	}

	return nil
}

// scanPromoCode is a helper that executes a query expected to return a single promo code row.
func (r *PromoCodeRepository) scanPromoCode(ctx context.Context, query string, args ...any) (*domain.PromoCode, error) {
	var (
		p           domain.PromoCode
		roomIDsJSON []byte
	)

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Code,
		&p.Description,
		&p.DiscountMode,
		&p.DiscountValue,
		&p.AppliesToAllRooms,
		&roomIDsJSON,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.MaxRedemptions,
		&p.RedemptionCount,
		&p.MinimumStayNights,
		&p.Enabled,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan promo code: %w", err)
	}

	if err := unmarshalRoomIDs(roomIDsJSON, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

func unmarshalRoomIDs(data []byte, p *domain.PromoCode) error {
	if data != nil {
		if err := json.Unmarshal(data, &p.ApplicableRoomIDs); err != nil {
			return fmt.Errorf("unmarshal applicable_room_ids: %w", err)
		}
	}
	if p.ApplicableRoomIDs == nil {
		p.ApplicableRoomIDs = []string{}
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
