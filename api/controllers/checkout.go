package controllers

import (
	"net/http"

	"github.com/mercadolocal/mercadito-backend/api/middleware"
	"github.com/mercadolocal/mercadito-backend/api/responses"
	"github.com/mercadolocal/mercadito-backend/internal/checkout"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
)

// Checkout converts the caller's cart into an order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		result, err := svc.PlaceOrder(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
