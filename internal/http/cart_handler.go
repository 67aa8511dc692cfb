package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Markide1/shopie-app/internal/cart"
)

// CartService is what the handler needs from the reservation manager.
type CartService interface {
	Add(ctx context.Context, userID, productID string, qty int) (*cart.Item, error)
	UpdateQuantity(ctx context.Context, userID, productID string, newQty int) (*cart.Item, error)
	Remove(ctx context.Context, userID, productID string) (*cart.Confirmation, error)
	Get(ctx context.Context, userID string) ([]cart.ItemView, error)
}

type CartHandler struct {
	svc CartService
}

func NewCartHandler(svc CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.svc.Get(ctx, userFrom(r).ID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := h.svc.Add(ctx, userFrom(r).ID, body.ProductID, body.Quantity)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := h.svc.UpdateQuantity(ctx, userFrom(r).ID, productID, body.Quantity)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	conf, err := h.svc.Remove(ctx, userFrom(r).ID, productID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}
