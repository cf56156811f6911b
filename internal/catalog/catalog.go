package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrProductNotFound = errors.New("product not found")

// Store reads and conditionally overwrites the catalog document. The sha
// returned by GetFile is the revision token PutFile must be called with;
// the store rejects a write whose token is stale.
type Store interface {
	GetFile(ctx context.Context) (content []byte, sha string, err error)
	PutFile(ctx context.Context, content []byte, sha string, message string) error
}

type Conf struct {
	store Store
	cache Cache
}

func NewConf(store Store, cache Cache) (*Conf, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cache == nil {
		cache = NewMemoryCache(5 * time.Minute)
	}
	return &Conf{store: store, cache: cache}, nil
}

// Products returns the full catalog, served from cache when possible.
func (c *Conf) Products(ctx context.Context) ([]Product, error) {
	if products, ok := c.cache.Get(ctx); ok {
		return products, nil
	}

	products, _, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, products)
	return products, nil
}

func (c *Conf) load(ctx context.Context) ([]Product, string, error) {
	content, sha, err := c.store.GetFile(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch catalog: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(content, &products); err != nil {
		return nil, "", fmt.Errorf("failed to parse catalog: %w", err)
	}
	return products, sha, nil
}

// AvailableProducts filters out sold items.
func (c *Conf) AvailableProducts(ctx context.Context) ([]Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}

	available := []Product{}
	for _, p := range products {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return available, nil
}

// FeaturedProducts returns products flagged for the homepage, sold items
// excluded.
func (c *Conf) FeaturedProducts(ctx context.Context) ([]Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}

	featured := []Product{}
	for _, p := range products {
		if p.Featured && p.IsAvailable() {
			featured = append(featured, p)
		}
	}
	return featured, nil
}

func (c *Conf) ProductByID(ctx context.Context, id string) (Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return Product{}, err
	}

	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (c *Conf) FilterByPeriod(ctx context.Context, period string) ([]Product, error) {
	products, err := c.AvailableProducts(ctx)
	if err != nil {
		return nil, err
	}
	if period == "" || strings.EqualFold(period, "all") {
		return products, nil
	}

	filtered := []Product{}
	for _, p := range products {
		if strings.EqualFold(p.Period, period) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (c *Conf) FilterByStyle(ctx context.Context, style string) ([]Product, error) {
	products, err := c.AvailableProducts(ctx)
	if err != nil {
		return nil, err
	}
	if style == "" || strings.EqualFold(style, "all") {
		return products, nil
	}

	filtered := []Product{}
	for _, p := range products {
		if strings.EqualFold(p.Style, style) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// UniquePeriods returns the sorted set of period values across the
// catalog, for the shop page filter dropdown.
func (c *Conf) UniquePeriods(ctx context.Context) ([]string, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	return uniqueSorted(products, func(p Product) string { return p.Period }), nil
}

// UniqueStyles returns the sorted set of style values across the catalog.
func (c *Conf) UniqueStyles(ctx context.Context) ([]string, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	return uniqueSorted(products, func(p Product) string { return p.Style }), nil
}

func uniqueSorted(products []Product, field func(Product) string) []string {
	seen := map[string]bool{}
	values := []string{}
	for _, p := range products {
		v := field(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Refresh drops the cached catalog so the next read hits the store.
func (c *Conf) Refresh(ctx context.Context) {
	c.cache.Invalidate(ctx)
}

// MarkSold flips available to false for every listed product that is
// still available and commits the updated document, guarded by the
// revision token of the read. It returns the ids actually flipped.
//
// A second delivery of the same sale finds the products already
// unavailable, flips nothing and skips the write, which makes the
// operation safe under at-least-once webhook delivery.
func (c *Conf) MarkSold(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	products, sha, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	updated := []string{}
	sold := false
	for i := range products {
		if wanted[products[i].ID] && products[i].IsAvailable() {
			products[i].Available = &sold
			updated = append(updated, products[i].ID)
		}
	}
	if len(updated) == 0 {
		return nil, nil
	}

	// Keep the document shape manual edits produce: two-space indent,
	// trailing newline.
	content, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize catalog: %w", err)
	}
	content = append(content, '\n')

	message := "Mark products as sold: " + strings.Join(updated, ", ")
	if err := c.store.PutFile(ctx, content, sha, message); err != nil {
		return nil, fmt.Errorf("failed to commit catalog: %w", err)
	}

	c.cache.Invalidate(ctx)
	return updated, nil
}
