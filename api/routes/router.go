package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comparteride/circles-backend/api/controllers"
	"github.com/comparteride/circles-backend/api/middleware"
	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/invitations"
	"github.com/comparteride/circles-backend/internal/ratings"
	"github.com/comparteride/circles-backend/internal/rides"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/logger"
)

// Cache is the redis surface the router needs: readiness plus auth throttling.
type Cache interface {
	Ping(ctx context.Context) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Params carries everything NewRouter mounts.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      controllers.Pinger
	Cache   Cache
	Metrics http.Handler

	Users       users.Service
	Circles     circles.Service
	Invitations invitations.Service
	Rides       rides.Service
	Ratings     ratings.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["database"] = p.DB
	}
	if p.Cache != nil {
		deps["redis"] = p.Cache
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	metricsHandler := p.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	var limiter middleware.RateLimitStore
	if p.Cache != nil {
		limiter = p.Cache
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(signupPolicy, limiter, logg)).Post("/signup", controllers.UserSignUp(p.Users, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.UserLogin(p.Users, logg))
		r.Post("/verify", controllers.UserVerify(p.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/users", func(r chi.Router) {
			r.Patch("/me/profile", controllers.UserUpdateProfile(p.Users, logg))
			r.Get("/{username}", controllers.UserProfile(p.Users, logg))
		})

		r.Route("/circles", func(r chi.Router) {
			r.Get("/", controllers.CircleList(p.Circles, logg))
			r.Post("/", controllers.CircleCreate(p.Circles, logg))
			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", controllers.CircleGet(p.Circles, logg))
				r.Patch("/", controllers.CircleUpdate(p.Circles, logg))
				r.Get("/members", controllers.CircleMembers(p.Circles, logg))
				r.Delete("/members/{userId}", controllers.CircleRemoveMember(p.Circles, logg))
				r.Get("/invitations", controllers.InvitationsList(p.Circles, p.Invitations, logg))
				r.Post("/invitations", controllers.InvitationsIssue(p.Circles, p.Invitations, logg))
				r.Get("/rides", controllers.RideList(p.Circles, p.Rides, logg))
				r.Post("/rides", controllers.RideCreate(p.Circles, p.Rides, logg))
			})
		})

		r.Post("/invitations/redeem", controllers.InvitationRedeem(p.Invitations, logg))

		r.Route("/rides/{rideId}", func(r chi.Router) {
			r.Get("/", controllers.RideGet(p.Rides, logg))
			r.Patch("/", controllers.RideUpdate(p.Rides, logg))
			r.Post("/join", controllers.RideJoin(p.Rides, logg))
			r.Post("/end", controllers.RideEnd(p.Rides, logg))
			r.Post("/cancel", controllers.RideCancel(p.Rides, logg))
			r.Get("/ratings", controllers.RideRatings(p.Ratings, logg))
			r.Post("/ratings", controllers.RideRate(p.Ratings, logg))
		})
	})

	return r
}

