package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type CreateProductInput struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	PriceCents int64    `json:"price_cents"`
	Currency   string   `json:"currency,omitempty"`
	VendorURL  string   `json:"vendor_url,omitempty"`
	ImageKey   string   `json:"image_key,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ProductView is a Product with the stored image key swapped for a servable
// URL.
type ProductView struct {
	*types.Product
	ImageURL string `json:"image_url,omitempty"`
}

type ProductService interface {
	Create(ctx context.Context, in CreateProductInput) (*types.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Product, error)
	Search(ctx context.Context, search repos.ProductSearch) ([]*ProductView, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	products repos.ProductRepo
	bucket   BucketService
	log      *logger.Logger
}

func NewProductService(products repos.ProductRepo, bucket BucketService, log *logger.Logger) ProductService {
	return &productService{
		products: products,
		bucket:   bucket,
		log:      log.With("service", "ProductService"),
	}
}

func (s *productService) Create(ctx context.Context, in CreateProductInput) (*types.Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" {
		return nil, fmt.Errorf("product name and category required")
	}
	if in.PriceCents < 0 {
		return nil, fmt.Errorf("price must be non-negative")
	}
	product := &types.Product{
		ID:         uuid.New(),
		Name:       name,
		Category:   category,
		PriceCents: in.PriceCents,
		Currency:   strings.ToUpper(strings.TrimSpace(in.Currency)),
		VendorURL:  strings.TrimSpace(in.VendorURL),
		ImageKey:   strings.TrimSpace(in.ImageKey),
	}
	if product.Currency == "" {
		product.Currency = "USD"
	}
	if len(in.Tags) > 0 {
		raw, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, fmt.Errorf("invalid tags: %w", err)
		}
		product.Tags = datatypes.JSON(raw)
	}
	if _, err := s.products.Create(ctx, nil, []*types.Product{product}); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (s *productService) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Product, error) {
	return s.products.GetByIDs(ctx, nil, ids)
}

func (s *productService) Search(ctx context.Context, search repos.ProductSearch) ([]*ProductView, error) {
	products, err := s.products.Search(ctx, nil, search)
	if err != nil {
		return nil, err
	}
	out := make([]*ProductView, 0, len(products))
	for _, p := range products {
		view := &ProductView{Product: p}
		if p.ImageKey != "" {
			if url, sErr := s.bucket.SignedReadURL(p.ImageKey, 1*time.Hour); sErr == nil {
				view.ImageURL = url
			} else {
				s.log.Warn("Failed to sign product image url", "product_id", p.ID, "error", sErr)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.products.Delete(ctx, nil, id)
}
