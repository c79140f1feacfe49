package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadolocal/mercadito-backend/api/controllers"
	vendorcontrollers "github.com/mercadolocal/mercadito-backend/api/controllers/vendor"
	webhookcontrollers "github.com/mercadolocal/mercadito-backend/api/controllers/webhooks"
	"github.com/mercadolocal/mercadito-backend/api/middleware"
	authsvc "github.com/mercadolocal/mercadito-backend/internal/auth"
	"github.com/mercadolocal/mercadito-backend/internal/cart"
	checkoutsvc "github.com/mercadolocal/mercadito-backend/internal/checkout"
	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/internal/onboarding"
	"github.com/mercadolocal/mercadito-backend/internal/orders"
	"github.com/mercadolocal/mercadito-backend/internal/products"
	"github.com/mercadolocal/mercadito-backend/internal/reviews"
	"github.com/mercadolocal/mercadito-backend/internal/shops"
	subscriptionsvc "github.com/mercadolocal/mercadito-backend/internal/subscriptions"
	"github.com/mercadolocal/mercadito-backend/internal/vendors"
	"github.com/mercadolocal/mercadito-backend/internal/webhooks"
	"github.com/mercadolocal/mercadito-backend/pkg/auth/session"
	"github.com/mercadolocal/mercadito-backend/pkg/config"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
	"github.com/mercadolocal/mercadito-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. The struct keeps the
// constructor signature stable as endpoints grow.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *db.Client
	Redis *redis.Client

	Sessions session.AccessSessionChecker

	Auth          authsvc.Service
	Shops         shops.Service
	Products      products.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Reviews       reviews.Service
	Onboarding    onboarding.Service
	Subscriptions subscriptionsvc.Service
	Eligibility   eligibility.Service
	Vendors       vendors.Resolver
	Webhooks      webhooks.Processor

	Metrics http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.Webhooks, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	// Public storefront: no credentials required.
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Get("/shops", controllers.ShopsList(d.Shops, logg))
		r.Get("/shops/{slug}", controllers.ShopBySlug(d.Shops, logg))
		r.Get("/products", controllers.PublicProductsList(d.Products, logg))
		r.Get("/products/{productId}", controllers.PublicProductDetail(d.Products, logg))
		r.Get("/products/{productId}/reviews", controllers.ReviewsList(d.Reviews, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		// A nil *redis.Client boxed into the interface is not nil, so the
		// guard has to happen before the value crosses the boundary.
		if d.Redis != nil {
			r.Use(middleware.Idempotency(d.Redis, logg))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Put("/items", controllers.CartSetItem(d.Cart, logg))
			r.Delete("/items/{variantId}", controllers.CartRemoveItem(d.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(d.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.BuyerOrdersList(d.Orders, logg))
			r.Get("/{orderId}", controllers.BuyerOrderDetail(d.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.BuyerOrderCancel(d.Orders, logg))
		})

		r.Route("/products/{productId}/reviews", func(r chi.Router) {
			r.Put("/", controllers.ReviewSubmit(d.Reviews, logg))
			r.Delete("/", controllers.ReviewDelete(d.Reviews, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.VendorMode(cfg.FeatureFlags.VendorMode, logg))

			r.Route("/onboarding", func(r chi.Router) {
				r.Get("/", vendorcontrollers.OnboardingStatus(d.Onboarding, d.Vendors, logg))
				r.Post("/steps", vendorcontrollers.OnboardingApplyStep(d.Onboarding, d.Vendors, logg))
			})

			r.Route("/shop", func(r chi.Router) {
				r.Get("/", vendorcontrollers.ShopProfile(d.Eligibility, d.Vendors, logg))
				r.Patch("/", vendorcontrollers.ShopUpdate(d.Shops, d.Vendors, logg))
				r.Post("/publish", vendorcontrollers.ShopPublish(d.Shops, d.Vendors, logg))
				r.Post("/pause", vendorcontrollers.ShopPause(d.Shops, d.Vendors, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", vendorcontrollers.ProductList(d.Products, d.Vendors, logg))
				r.Post("/", vendorcontrollers.ProductCreate(d.Products, d.Vendors, logg))
				r.Route("/{productId}", func(r chi.Router) {
					r.Get("/", vendorcontrollers.ProductDetail(d.Products, d.Vendors, logg))
					r.Patch("/", vendorcontrollers.ProductUpdate(d.Products, d.Vendors, logg))
					r.Delete("/", vendorcontrollers.ProductDelete(d.Products, d.Vendors, logg))
					r.Post("/variants", vendorcontrollers.VariantAdd(d.Products, d.Vendors, logg))
					r.Patch("/variants/{variantId}", vendorcontrollers.VariantUpdate(d.Products, d.Vendors, logg))
					r.Delete("/variants/{variantId}", vendorcontrollers.VariantDelete(d.Products, d.Vendors, logg))
					r.Post("/images", vendorcontrollers.ImageAdd(d.Products, d.Vendors, logg))
					r.Delete("/images/{imageId}", vendorcontrollers.ImageRemove(d.Products, d.Vendors, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", vendorcontrollers.OrdersList(d.Orders, d.Vendors, logg))
				r.Patch("/{orderId}/status", vendorcontrollers.OrderUpdateStatus(d.Orders, d.Vendors, logg))
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/subscription", vendorcontrollers.SubscriptionFetch(d.Subscriptions, d.Vendors, logg))
				r.Post("/subscription/checkout", vendorcontrollers.SubscriptionCheckout(d.Subscriptions, d.Vendors, logg))
				r.Post("/connect-link", vendorcontrollers.ConnectLink(d.Subscriptions, d.Vendors, logg))
			})
		})
	})

	return r
}
