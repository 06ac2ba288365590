package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	products  map[int64]Product
	locations map[int64]Location
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: map[int64]Product{}, locations: map[int64]Location{}}
}

func (r *fakeRepo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *fakeRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (r *fakeRepo) CreateProduct(ctx context.Context, product Product) (Product, error) {
	for _, p := range r.products {
		if p.SKU == product.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	r.nextID++
	product.ID = r.nextID
	r.products[product.ID] = product
	return product, nil
}

func (r *fakeRepo) ListLocations(ctx context.Context) ([]Location, error) {
	var out []Location
	for _, l := range r.locations {
		out = append(out, l)
	}
	return out, nil
}

func (r *fakeRepo) GetLocation(ctx context.Context, id int64) (Location, error) {
	if l, ok := r.locations[id]; ok {
		return l, nil
	}
	return Location{}, ErrNotFound
}

func (r *fakeRepo) CreateLocation(ctx context.Context, location Location) (Location, error) {
	r.nextID++
	location.ID = r.nextID
	r.locations[location.ID] = location
	return location, nil
}

func TestCreateProductNormalises(t *testing.T) {
	svc := NewService(newFakeRepo())

	product, err := svc.CreateProduct(context.Background(), Product{SKU: "  wid-001 ", Name: "  steel widget "})
	require.NoError(t, err)
	require.Equal(t, "WID-001", product.SKU)
	require.Equal(t, "Steel Widget", product.Name)
	require.True(t, product.Active)
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, Product{SKU: "WID-001", Name: "Widget"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, Product{SKU: "wid-001", Name: "Widget Again"})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestCreateProductRequiresFields(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.CreateProduct(context.Background(), Product{SKU: " ", Name: "X"})
	require.Error(t, err)
	_, err = svc.CreateProduct(context.Background(), Product{SKU: "A", Name: ""})
	require.Error(t, err)
}

func TestCreateLocationNormalisesCode(t *testing.T) {
	svc := NewService(newFakeRepo())

	location, err := svc.CreateLocation(context.Background(), Location{Code: "wh-1", Name: "Main"})
	require.NoError(t, err)
	require.Equal(t, "WH-1", location.Code)
}
