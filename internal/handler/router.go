package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	HTTPMetrics        metrics.HTTPMetrics
	CookieCodec        *middleware.CookieCodec
	UserResolver       middleware.UserResolver
	CORSAllowedOrigins []string
	CSRF               middleware.CSRFConfig
	RateLimiter        *middleware.RateLimiter

	// 運用エンドポイント
	Health         Pinger
	MetricsHandler http.Handler

	// サービス
	AuthService        AuthServiceInterface
	AccountService     AccountServiceInterface
	ReservationService ReservationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//	/api 配下: CSRF
//	認証が必要なルート: Session → RateLimit(General) → RateLimit(Booking)
//
// /health と /metrics はCSRFとセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.AccountService, deps.CookieCodec)
	reservationHandler := NewReservationHandler(deps.ReservationService)

	// --- 運用エンドポイント ---
	if deps.Health != nil {
		r.Get("/health", NewHealthHandler(deps.Health))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf", middleware.NewCSRFTokenHandler(deps.CSRF))

			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.AuthMiddleware())
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.With(
				middleware.NewSessionMiddleware(deps.CookieCodec, deps.UserResolver),
				deps.RateLimiter.GeneralMiddleware(),
			).Post("/anonymize", authHandler.Anonymize)
		})

		// --- 認証が必要なルート ---
		r.Route("/reservations", func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.CookieCodec, deps.UserResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(deps.RateLimiter.BookingMiddleware())

			r.Get("/", reservationHandler.ListWeek)
			r.Post("/", reservationHandler.Create)
			r.Get("/availability", reservationHandler.Availability)
			r.Get("/user/{userId}", reservationHandler.ListForUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reservationHandler.Get)
				r.Put("/", reservationHandler.Update)
				r.Delete("/", reservationHandler.Delete)
			})
		})
	})

	return r
}
