package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Markide1/shopie-app/internal/cart"
	"github.com/Markide1/shopie-app/internal/catalog"
	"github.com/Markide1/shopie-app/internal/fault"
	"github.com/Markide1/shopie-app/internal/identity"
	"github.com/Markide1/shopie-app/internal/order"
)

type fakeCartService struct {
	addFunc    func(ctx context.Context, userID, productID string, qty int) (*cart.Item, error)
	updateFunc func(ctx context.Context, userID, productID string, newQty int) (*cart.Item, error)
	removeFunc func(ctx context.Context, userID, productID string) (*cart.Confirmation, error)
	getFunc    func(ctx context.Context, userID string) ([]cart.ItemView, error)
}

func (f *fakeCartService) Add(ctx context.Context, userID, productID string, qty int) (*cart.Item, error) {
	if f.addFunc != nil {
		return f.addFunc(ctx, userID, productID, qty)
	}
	return &cart.Item{UserID: userID, ProductID: productID, Quantity: qty}, nil
}

func (f *fakeCartService) UpdateQuantity(ctx context.Context, userID, productID string, newQty int) (*cart.Item, error) {
	if f.updateFunc != nil {
		return f.updateFunc(ctx, userID, productID, newQty)
	}
	return &cart.Item{UserID: userID, ProductID: productID, Quantity: newQty}, nil
}

func (f *fakeCartService) Remove(ctx context.Context, userID, productID string) (*cart.Confirmation, error) {
	if f.removeFunc != nil {
		return f.removeFunc(ctx, userID, productID)
	}
	return &cart.Confirmation{Message: "removed"}, nil
}

func (f *fakeCartService) Get(ctx context.Context, userID string) ([]cart.ItemView, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, userID)
	}
	return []cart.ItemView{}, nil
}

type fakeOrderService struct {
	OrderService
	cancelFunc    func(ctx context.Context, orderID, userID string) (*order.Order, error)
	setStatusFunc func(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
}

func (f *fakeOrderService) Cancel(ctx context.Context, orderID, userID string) (*order.Order, error) {
	if f.cancelFunc != nil {
		return f.cancelFunc(ctx, orderID, userID)
	}
	return &order.Order{ID: orderID, Status: order.StatusCancelled}, nil
}

func (f *fakeOrderService) SetStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	if f.setStatusFunc != nil {
		return f.setStatusFunc(ctx, orderID, status)
	}
	return &order.Order{ID: orderID, Status: status}, nil
}

type fakeCatalogService struct {
	CatalogService
}

func (f *fakeCatalogService) FindAll(ctx context.Context) ([]catalog.Product, error) {
	return []catalog.Product{}, nil
}

func newTestRouter(carts CartService, orders OrderService) http.Handler {
	return NewRouter(
		NewCatalogHandler(&fakeCatalogService{}),
		NewCartHandler(carts),
		NewOrderHandler(orders),
	)
}

func asCustomer(r *http.Request) *http.Request {
	r.Header.Set(headerUserID, "u-1")
	r.Header.Set(headerRole, string(identity.RoleCustomer))
	return r
}

func asAdmin(r *http.Request) *http.Request {
	r.Header.Set(headerUserID, "a-1")
	r.Header.Set(headerRole, string(identity.RoleAdmin))
	return r
}

func TestIdentityRequired(t *testing.T) {
	router := newTestRouter(&fakeCartService{}, &fakeOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGate(t *testing.T) {
	router := newTestRouter(&fakeCartService{}, &fakeOrderService{})

	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/admin/orders/", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddToCart(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		router := newTestRouter(&fakeCartService{}, &fakeOrderService{})

		req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"p-1","quantity":2}`)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var item cart.Item
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
		assert.Equal(t, "p-1", item.ProductID)
		assert.Equal(t, 2, item.Quantity)
	})

	t.Run("insufficient stock maps to 400", func(t *testing.T) {
		carts := &fakeCartService{
			addFunc: func(ctx context.Context, userID, productID string, qty int) (*cart.Item, error) {
				return nil, fault.InsufficientStock("insufficient stock")
			},
		}
		router := newTestRouter(carts, &fakeOrderService{})

		req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"p-1","quantity":2}`)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "insufficient stock")
	})

	t.Run("duplicate maps to 409", func(t *testing.T) {
		carts := &fakeCartService{
			addFunc: func(ctx context.Context, userID, productID string, qty int) (*cart.Item, error) {
				return nil, fault.Conflict("product already in cart")
			},
		}
		router := newTestRouter(carts, &fakeOrderService{})

		req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"p-1","quantity":2}`)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestCancelOrder(t *testing.T) {
	t.Run("missing order maps to 404", func(t *testing.T) {
		orders := &fakeOrderService{
			cancelFunc: func(ctx context.Context, orderID, userID string) (*order.Order, error) {
				return nil, fault.NotFound("order not found")
			},
		}
		router := newTestRouter(&fakeCartService{}, orders)

		req := asCustomer(httptest.NewRequest(http.MethodPatch, "/api/orders/o-1/cancel", nil))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancelled", func(t *testing.T) {
		router := newTestRouter(&fakeCartService{}, &fakeOrderService{})

		req := asCustomer(httptest.NewRequest(http.MethodPatch, "/api/orders/o-1/cancel", nil))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var o order.Order
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
		assert.Equal(t, order.StatusCancelled, o.Status)
	})
}

func TestAdminSetStatus(t *testing.T) {
	orders := &fakeOrderService{}
	router := newTestRouter(&fakeCartService{}, orders)

	req := asAdmin(httptest.NewRequest(http.MethodPatch, "/api/admin/orders/o-1/status",
		strings.NewReader(`{"status":"CANCELLED"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var o order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	assert.Equal(t, order.StatusCancelled, o.Status)
}
