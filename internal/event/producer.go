package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aubergehq/promo-service/internal/domain"
	pkgkafka "github.com/aubergehq/promo-service/pkg/kafka"
)

// Kafka topics for promo code domain events.
var (
	TopicPromoCodeCreated  = pkgkafka.Topic("promocode", "created")
	TopicPromoCodeUpdated  = pkgkafka.Topic("promocode", "updated")
	TopicPromoCodeDeleted  = pkgkafka.Topic("promocode", "deleted")
	TopicPromoCodeRedeemed = pkgkafka.Topic("promocode", "redeemed")
)

// Aggregate type constant.
const AggregateTypePromoCode = "promo_code"

// Source identifier for events originating from the promo service.
const SourcePromoService = "promo-service"

// PromoCodeCreatedData is the payload for a promocode.created event.
type PromoCodeCreatedData struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	DiscountMode  string  `json:"discount_mode"`
	DiscountValue float64 `json:"discount_value"`
	Enabled       bool    `json:"enabled"`
}

// PromoCodeUpdatedData is the payload for a promocode.updated event.
type PromoCodeUpdatedData struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Enabled bool   `json:"enabled"`
}

// PromoCodeDeletedData is the payload for a promocode.deleted event.
type PromoCodeDeletedData struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// PromoCodeRedeemedData is the payload for a promocode.redeemed event.
type PromoCodeRedeemedData struct {
	PromoCodeID     string  `json:"promo_code_id"`
	Code            string  `json:"code"`
	BookingID       string  `json:"booking_id"`
	RoomID          string  `json:"room_id,omitempty"`
	Nights          int     `json:"nights"`
	DiscountApplied float64 `json:"discount_applied"`
}

// Producer publishes promo code domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the promo service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishPromoCodeCreated publishes a promocode.created event.
func (p *Producer) PublishPromoCodeCreated(ctx context.Context, promo *domain.PromoCode) error {
	data := PromoCodeCreatedData{
		ID:            promo.ID,
		Code:          promo.Code,
		DiscountMode:  promo.DiscountMode,
		DiscountValue: promo.DiscountValue,
		Enabled:       promo.Enabled,
	}

	event, err := pkgkafka.NewEvent(TopicPromoCodeCreated, promo.ID, AggregateTypePromoCode, SourcePromoService, data)
	if err != nil {
		return fmt.Errorf("create promocode.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromoCodeCreated, event); err != nil {
		return fmt.Errorf("publish promocode.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promocode.created event",
		slog.String("promo_code_id", promo.ID),
		slog.String("code", promo.Code),
	)

	return nil
}

// PublishPromoCodeUpdated publishes a promocode.updated event.
func (p *Producer) PublishPromoCodeUpdated(ctx context.Context, promo *domain.PromoCode) error {
	data := PromoCodeUpdatedData{
		ID:      promo.ID,
		Code:    promo.Code,
		Enabled: promo.Enabled,
	}

	event, err := pkgkafka.NewEvent(TopicPromoCodeUpdated, promo.ID, AggregateTypePromoCode, SourcePromoService, data)
	if err != nil {
		return fmt.Errorf("create promocode.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromoCodeUpdated, event); err != nil {
		return fmt.Errorf("publish promocode.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promocode.updated event",
		slog.String("promo_code_id", promo.ID),
		slog.String("code", promo.Code),
	)

	return nil
}

// PublishPromoCodeDeleted publishes a promocode.deleted event.
func (p *Producer) PublishPromoCodeDeleted(ctx context.Context, promo *domain.PromoCode) error {
	data := PromoCodeDeletedData{
		ID:   promo.ID,
		Code: promo.Code,
	}

	event, err := pkgkafka.NewEvent(TopicPromoCodeDeleted, promo.ID, AggregateTypePromoCode, SourcePromoService, data)
	if err != nil {
		return fmt.Errorf("create promocode.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromoCodeDeleted, event); err != nil {
		return fmt.Errorf("publish promocode.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promocode.deleted event",
		slog.String("promo_code_id", promo.ID),
		slog.String("code", promo.Code),
	)

	return nil
}

// PublishPromoCodeRedeemed publishes a promocode.redeemed event.
func (p *Producer) PublishPromoCodeRedeemed(ctx context.Context, promo *domain.PromoCode, redemption *domain.Redemption) error {
	data := PromoCodeRedeemedData{
		PromoCodeID:     redemption.PromoCodeID,
		Code:            promo.Code,
		BookingID:       redemption.BookingID,
		RoomID:          redemption.RoomID,
		Nights:          redemption.Nights,
		DiscountApplied: redemption.DiscountApplied,
	}

	event, err := pkgkafka.NewEvent(TopicPromoCodeRedeemed, promo.ID, AggregateTypePromoCode, SourcePromoService, data)
	if err != nil {
		return fmt.Errorf("create promocode.redeemed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromoCodeRedeemed, event); err != nil {
		return fmt.Errorf("publish promocode.redeemed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promocode.redeemed event",
		slog.String("promo_code_id", promo.ID),
		slog.String("booking_id", redemption.BookingID),
		slog.Float64("discount_applied", redemption.DiscountApplied),
	)

	return nil
}
