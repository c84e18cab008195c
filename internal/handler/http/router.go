package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aubergehq/promo-service/internal/auth"
	"github.com/aubergehq/promo-service/internal/service"
	"github.com/aubergehq/promo-service/pkg/health"
	"github.com/aubergehq/promo-service/pkg/middleware"
)

// RouterConfig carries the router's security and traffic settings.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	VerifyRPS         int
	VerifyBurst       int
	TokenValidator    middleware.TokenValidator
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all promo service routes registered.
//
// Management endpoints require an admin token. Verification is public but
// rate limited per client IP; redemption requires any authenticated caller
// (the booking service redeems on behalf of guests).
func NewRouter(
	promoService *service.PromoCodeService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("promo"))
	r.Use(middleware.Tracing("promo"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	promoHandler := NewPromoCodeHandler(promoService, logger)

	r.Route("/api/v1/promo-codes", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public verification, rate limited per IP.
		r.With(middleware.RateLimit(cfg.VerifyRPS, cfg.VerifyBurst, logger)).
			Post("/verify", promoHandler.VerifyPromoCode)

		// Redemption needs an authenticated caller.
		r.With(middleware.Auth(cfg.TokenValidator)).
			Post("/redeem", promoHandler.RedeemPromoCode)

		// Management endpoints are admin only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.TokenValidator))
			r.Use(middleware.RequireRole("admin"))

			r.Post("/", promoHandler.CreatePromoCode)
			r.Get("/", promoHandler.ListPromoCodes)
			r.Get("/stats", promoHandler.GetStats)
			r.Get("/{id}", promoHandler.GetPromoCode)
			r.Put("/{id}", promoHandler.UpdatePromoCode)
			r.Delete("/{id}", promoHandler.DeletePromoCode)
		})
	})

	return r
}

// NewTokenValidator adapts the JWT verifier to the middleware's validator contract.
func NewTokenValidator(verifier *auth.Verifier) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := verifier.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}
}
