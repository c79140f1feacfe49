package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mercadolocal/mercadito-backend/pkg/config"
)

func testDeps() Deps {
	return Deps{
		Config: &config.Config{
			App: config.AppConfig{Env: "dev", Port: "8080"},
			JWT: config.JWTConfig{
				Secret:            "router-test-secret",
				Issuer:            "mercadito-test",
				ExpirationMinutes: 15,
			},
			FeatureFlags: config.FeatureFlagsConfig{VendorMode: true},
		},
	}
}

func TestRouterHealthLive(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if rec.Header().Get("X-Mercadito-Env") != "dev" {
		t.Fatalf("env header: %q", rec.Header().Get("X-Mercadito-Env"))
	}
}

func TestRouterProtectedRoutesRequireAuth(t *testing.T) {
	router := NewRouter(testDeps())

	for _, path := range []string{
		"/api/v1/cart",
		"/api/v1/orders",
		"/api/v1/vendor/shop",
		"/api/v1/vendor/onboarding",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", path, rec.Code)
		}
	}
}

func TestRouterPublicRoutesSkipAuth(t *testing.T) {
	router := NewRouter(testDeps())

	// Services are nil in this fixture, so reachable public routes answer
	// 500 instead of 401.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/shops", nil))

	if rec.Code == http.StatusUnauthorized {
		t.Fatal("public route must not require credentials")
	}
}

func TestRouterVendorOrderStatusUsesPatch(t *testing.T) {
	router := NewRouter(testDeps())

	const route = "/api/v1/vendor/orders/{orderId}/status"
	methods := map[string]bool{}
	err := chi.Walk(router.(chi.Routes), func(method, pattern string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if pattern == route {
			methods[method] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	if !methods[http.MethodPatch] {
		t.Fatalf("route %s not registered for PATCH, got %v", route, methods)
	}
	if methods[http.MethodPost] {
		t.Fatalf("route %s must not accept POST", route)
	}
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rec.Code)
	}
}
