package middleware

import (
	"net/http"

	"github.com/mercadolocal/mercadito-backend/api/responses"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
)

// VendorMode gates every vendor surface behind the deployment feature flag.
// Disabled deployments answer 404 so the surface is indistinguishable from a
// route that never existed.
func VendorMode(enabled bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "not found"))
		})
	}
}
