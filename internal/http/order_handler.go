package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Markide1/shopie-app/internal/identity"
	"github.com/Markide1/shopie-app/internal/order"
)

// OrderService is what the handler needs from the lifecycle machine.
type OrderService interface {
	Create(ctx context.Context, user identity.User, cartItemIDs []string, addr order.Address) (*order.Order, error)
	ConfirmPayment(ctx context.Context, orderID, userID string) (*order.Order, error)
	Ship(ctx context.Context, orderID string) (*order.Order, error)
	Cancel(ctx context.Context, orderID, userID string) (*order.Order, error)
	ConfirmDelivery(ctx context.Context, orderID string, user identity.User) (*order.Order, error)
	SetStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	FindOne(ctx context.Context, userID, orderID string) (*order.Order, error)
	FindAll(ctx context.Context, userID string) ([]order.Order, error)
	FindAllAdmin(ctx context.Context) ([]order.Order, error)
}

type OrderHandler struct {
	svc OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CartItemIDs []string `json:"cartItemIds"`
		Address     string   `json:"address"`
		City        string   `json:"city"`
		PostalCode  string   `json:"postalCode"`
		Country     string   `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.svc.Create(ctx, userFrom(r), body.CartItemIDs, order.Address{
		Address:    body.Address,
		City:       body.City,
		PostalCode: body.PostalCode,
		Country:    body.Country,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.svc.FindAll(ctx, userFrom(r).ID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.svc.FindAllAdmin(ctx)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.FindOne(ctx, userFrom(r).ID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.ConfirmPayment(ctx, chi.URLParam(r, "orderId"), userFrom(r).ID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.Cancel(ctx, chi.URLParam(r, "orderId"), userFrom(r).ID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.ConfirmDelivery(ctx, chi.URLParam(r, "orderId"), userFrom(r))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.Ship(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.SetStatus(ctx, chi.URLParam(r, "orderId"), order.Status(body.Status))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
