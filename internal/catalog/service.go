// Package catalog is the administrative side of the product table: creation,
// edits and soft deletion. Stock changes made here still go through the
// inventory ledger so the counter has exactly one mutator.
package catalog

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Markide1/shopie-app/internal/db"
	"github.com/Markide1/shopie-app/internal/fault"
	"github.com/Markide1/shopie-app/internal/inventory"
)

type Service struct {
	pool    db.Pool
	ledger  *inventory.Ledger
	monitor *inventory.Monitor
	logger  *log.Logger
}

func NewService(pool db.Pool, ledger *inventory.Ledger, monitor *inventory.Monitor, logger *log.Logger) *Service {
	return &Service{pool: pool, ledger: ledger, monitor: monitor, logger: logger}
}

// Create inserts a product with its opening stock. Name and description must
// be unique among active products.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	if in.Name == "" {
		return nil, fault.Validation("product name is required")
	}
	if !in.Price.IsPositive() {
		return nil, fault.Validation("price must be greater than zero")
	}
	if in.Stock < 0 {
		return nil, fault.Validation("stock cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to create product", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE (name=$1 OR description=$2) AND is_active
		)
	`, in.Name, in.Description).Scan(&exists)
	if err != nil {
		return nil, fault.Internal("failed to create product", err)
	}
	if exists {
		return nil, fault.Conflict("try unique details as these already exist")
	}

	p := &Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    true,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.Stock).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fault.Internal("failed to create product", err)
	}

	for i, url := range in.ImageURLs {
		img := Image{ID: uuid.NewString(), ImageURL: url, IsMain: i == 0}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_images (id, product_id, image_url, is_main)
			VALUES ($1, $2, $3, $4)
		`, img.ID, p.ID, img.ImageURL, img.IsMain); err != nil {
			return nil, fault.Internal("failed to create product", err)
		}
		p.Images = append(p.Images, img)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to create product", err)
	}

	s.monitor.Observe(ctx, inventory.Level{ProductID: p.ID, Name: p.Name, Stock: p.Stock})
	return p, nil
}

// Update patches catalog fields. A stock change is expressed as a ledger
// adjustment: lowering the counter behaves like a reservation (and can fail
// with InsufficientStock), raising it like a release.
func (s *Service) Update(ctx context.Context, productID string, in UpdateInput) (*Product, error) {
	if in.Price != nil && !in.Price.IsPositive() {
		return nil, fault.Validation("price must be greater than zero")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return nil, fault.Validation("stock cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to update product", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.Name != nil || in.Description != nil {
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM products
				WHERE (name=$2 OR description=$3) AND id <> $1 AND is_active
			)
		`, productID, deref(in.Name), deref(in.Description)).Scan(&exists)
		if err != nil {
			return nil, fault.Internal("failed to update product", err)
		}
		if exists {
			return nil, fault.Conflict("try unique details as these already exist")
		}
	}

	p := &Product{ID: productID, IsActive: true}
	err = tx.QueryRow(ctx, `
		SELECT name, description, price, stock
		FROM products
		WHERE id=$1 AND is_active
		FOR UPDATE
	`, productID).Scan(&p.Name, &p.Description, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFound("product not found")
		}
		return nil, fault.Internal("failed to update product", err)
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}

	var decreased *inventory.Level
	if in.Stock != nil && *in.Stock != p.Stock {
		// ledger delta is "units reserved": shrinking stock reserves the
		// difference, growing it releases.
		lv, err := s.ledger.Adjust(ctx, tx, productID, p.Stock-*in.Stock)
		if err != nil {
			return nil, wrap("failed to update product", err)
		}
		if *in.Stock < p.Stock {
			decreased = &lv
		}
		p.Stock = *in.Stock
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET name=$2, description=$3, price=$4, updated_at=now()
		WHERE id=$1
	`, productID, p.Name, p.Description, p.Price); err != nil {
		return nil, fault.Internal("failed to update product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to update product", err)
	}

	if decreased != nil {
		s.monitor.Observe(ctx, *decreased)
	}
	return p, nil
}

// Delete soft-deletes a product. Products held in a cart or locked in a live
// order stay visible until those claims resolve.
func (s *Service) Delete(ctx context.Context, productID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fault.Internal("failed to delete product", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var active bool
	err = tx.QueryRow(ctx, `
		SELECT is_active FROM products WHERE id=$1 FOR UPDATE
	`, productID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fault.NotFound("product not found")
		}
		return fault.Internal("failed to delete product", err)
	}

	var inCart bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM cart_items WHERE product_id=$1)
	`, productID).Scan(&inCart)
	if err != nil {
		return fault.Internal("failed to delete product", err)
	}
	if inCart {
		return fault.Validation("cannot delete product that is in cart")
	}

	var inLiveOrder bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE oi.product_id=$1 AND o.status IN ('PENDING', 'CONFIRMED', 'SHIPPED')
		)
	`, productID).Scan(&inLiveOrder)
	if err != nil {
		return fault.Internal("failed to delete product", err)
	}
	if inLiveOrder {
		return fault.Validation("cannot delete product with active orders")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products SET is_active=false, updated_at=now() WHERE id=$1
	`, productID); err != nil {
		return fault.Internal("failed to delete product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fault.Internal("failed to delete product", err)
	}
	return nil
}

// FindOne returns an active product with its images.
func (s *Service) FindOne(ctx context.Context, productID string) (*Product, error) {
	p := &Product{ID: productID}
	err := s.pool.QueryRow(ctx, `
		SELECT name, description, price, stock, is_active, created_at, updated_at
		FROM products
		WHERE id=$1 AND is_active
	`, productID).Scan(&p.Name, &p.Description, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFound("product not found")
		}
		return nil, fault.Internal("failed to load product", err)
	}

	p.Images, err = s.loadImages(ctx, productID)
	if err != nil {
		return nil, fault.Internal("failed to load product", err)
	}
	return p, nil
}

// FindAll lists active products with their images, main image first.
func (s *Service) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, price, stock, is_active, created_at, updated_at
		FROM products
		WHERE is_active
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fault.Internal("failed to load products", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fault.Internal("failed to load products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Internal("failed to load products", err)
	}

	for i := range products {
		products[i].Images, err = s.loadImages(ctx, products[i].ID)
		if err != nil {
			return nil, fault.Internal("failed to load products", err)
		}
	}
	return products, nil
}

func (s *Service) loadImages(ctx context.Context, productID string) ([]Image, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, image_url, is_main
		FROM product_images
		WHERE product_id=$1
		ORDER BY is_main DESC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ImageURL, &img.IsMain); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func wrap(msg string, err error) error {
	var f *fault.Error
	if errors.As(err, &f) && f.Kind != fault.KindInternal {
		return err
	}
	return fault.Internal(msg, err)
}
