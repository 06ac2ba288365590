package catalog

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Service coordinates catalog master data operations.
type Service struct {
	repo  Repository
	title cases.Caser
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, title: cases.Title(language.Und)}
}

// ListProducts lists products matching the filters.
func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	return s.repo.ListProducts(ctx, filters)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("catalog: invalid product id")
	}
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct registers a new product. SKUs are stored upper-cased and
// display names in title case so listings sort predictably.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = s.title.String(strings.TrimSpace(product.Name))
	if product.SKU == "" || product.Name == "" {
		return Product{}, errors.New("catalog: sku and name required")
	}
	product.Active = true
	return s.repo.CreateProduct(ctx, product)
}

// ListLocations lists all locations.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// GetLocation returns one location.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, errors.New("catalog: invalid location id")
	}
	return s.repo.GetLocation(ctx, id)
}

// CreateLocation registers a new stock location.
func (s *Service) CreateLocation(ctx context.Context, location Location) (Location, error) {
	location.Code = strings.ToUpper(strings.TrimSpace(location.Code))
	location.Name = strings.TrimSpace(location.Name)
	if location.Code == "" || location.Name == "" {
		return Location{}, errors.New("catalog: code and name required")
	}
	return s.repo.CreateLocation(ctx, location)
}
