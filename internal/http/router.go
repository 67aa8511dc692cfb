package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Markide1/shopie-app/internal/fault"
)

func NewRouter(products *CatalogHandler, carts *CartHandler, orders *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", handleHealth)

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", products.List)
		r.Get("/{productId}", products.Get)

		r.Group(func(r chi.Router) {
			r.Use(WithIdentity, RequireAdmin)
			r.Post("/", products.Create)
			r.Patch("/{productId}", products.Update)
			r.Delete("/{productId}", products.Delete)
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(WithIdentity)
		r.Get("/", carts.Get)
		r.Post("/items", carts.Add)
		r.Patch("/items/{productId}", carts.UpdateQuantity)
		r.Delete("/items/{productId}", carts.Remove)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(WithIdentity)
		r.Post("/", orders.Create)
		r.Get("/", orders.List)
		r.Get("/{orderId}", orders.Get)
		r.Patch("/{orderId}/pay", orders.ConfirmPayment)
		r.Patch("/{orderId}/cancel", orders.Cancel)
		r.Patch("/{orderId}/deliver", orders.ConfirmDelivery)
	})

	r.Route("/api/admin/orders", func(r chi.Router) {
		r.Use(WithIdentity, RequireAdmin)
		r.Get("/", orders.ListAdmin)
		r.Patch("/{orderId}/ship", orders.Ship)
		r.Patch("/{orderId}/status", orders.SetStatus)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "shopie-app",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFault maps an error kind to its HTTP status. Internal faults keep
// their safe message; the cause stays in the logs.
func writeFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindConflict:
		status = http.StatusConflict
	case fault.KindInsufficientStock, fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindForbidden:
		status = http.StatusForbidden
	}

	var f *fault.Error
	if errors.As(err, &f) {
		writeError(w, status, f.Msg)
		return
	}
	writeError(w, status, "internal error")
}
