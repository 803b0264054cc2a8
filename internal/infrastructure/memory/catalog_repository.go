package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/catalogseed"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
)

// CatalogRepository implements domain.CatalogRepository on a Store
type CatalogRepository struct {
	store *Store
}

// NewCatalogRepository creates a catalog repository backed by store
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// Seed loads reference data, replacing entries with the same id
func (r *CatalogRepository) Seed(ctx context.Context, seed *catalogseed.Seed) error {
	return r.store.write(ctx, func(st *state) error {
		for _, s := range seed.DomainSuppliers() {
			st.suppliers[s.ID] = s
		}
		for _, g := range seed.DomainGSMs() {
			st.gsms[g.ID] = g
		}
		for _, q := range seed.DomainQualities() {
			st.qualities[q.ID] = q
		}
		for _, p := range seed.DomainProducts() {
			st.products[p.ID] = p
		}
		for _, s := range seed.DomainSKUs() {
			st.skus[s.ID] = s
		}
		return nil
	})
}

func (r *CatalogRepository) FindSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var found *domain.Supplier
	err := r.store.read(ctx, func(st *state) error {
		s, ok := st.suppliers[id]
		if !ok {
			return domain.NewNotFoundError("supplier", id)
		}
		c := *s
		found = &c
		return nil
	})
	return found, err
}

func (r *CatalogRepository) FindGSMByName(ctx context.Context, name string) (*domain.GSM, error) {
	var found *domain.GSM
	err := r.store.read(ctx, func(st *state) error {
		for _, g := range st.gsms {
			if strings.EqualFold(g.Name, strings.TrimSpace(name)) {
				c := *g
				found = &c
				return nil
			}
		}
		return domain.NewNotFoundError("gsm", name)
	})
	return found, err
}

func (r *CatalogRepository) FindQualityByName(ctx context.Context, name string) (*domain.Quality, error) {
	var found *domain.Quality
	err := r.store.read(ctx, func(st *state) error {
		for _, q := range st.qualities {
			if strings.EqualFold(q.Name, strings.TrimSpace(name)) {
				c := *q
				found = &c
				return nil
			}
		}
		return domain.NewNotFoundError("quality", name)
	})
	return found, err
}

func (r *CatalogRepository) FindProduct(ctx context.Context, categoryID, gsmID, qualityID string) (*domain.Product, error) {
	var found *domain.Product
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.products {
			if p.CategoryID == categoryID && p.GSMID == gsmID && p.QualityID == qualityID {
				c := *p
				found = &c
				return nil
			}
		}
		return domain.NewNotFoundError("product", fmt.Sprintf("%s/%s/%s", categoryID, gsmID, qualityID))
	})
	return found, err
}

func (r *CatalogRepository) FindSKU(ctx context.Context, id string) (*domain.SKU, error) {
	var found *domain.SKU
	err := r.store.read(ctx, func(st *state) error {
		s, ok := st.skus[id]
		if !ok {
			return domain.NewNotFoundError("sku", id)
		}
		found = copySKU(s)
		return nil
	})
	return found, err
}

func (r *CatalogRepository) FindSKUForProduct(ctx context.Context, productID string, width domain.Width) (*domain.SKU, error) {
	var found *domain.SKU
	err := r.store.read(ctx, func(st *state) error {
		for _, s := range st.skus {
			if s.ProductID == productID && s.WidthInches == width {
				found = copySKU(s)
				return nil
			}
		}
		return domain.NewNotFoundError("sku", fmt.Sprintf("%s@%d", productID, int(width)))
	})
	return found, err
}

// SaveSKU inserts a SKU. A second SKU for the same product and width is a conflict.
func (r *CatalogRepository) SaveSKU(ctx context.Context, sku *domain.SKU) error {
	err := r.store.write(ctx, func(st *state) error {
		for _, s := range st.skus {
			if s.ID == sku.ID || (s.ProductID == sku.ProductID && s.WidthInches == sku.WidthInches) {
				return fmt.Errorf("%w: sku for product %s at width %d already exists",
					domain.ErrConcurrentModification, sku.ProductID, int(sku.WidthInches))
			}
		}
		rows, err := events.SKUStream.ToOutbox(ctx, r.store.factory, sku.ID, sku.GetDomainEvents())
		if err != nil {
			return err
		}
		st.skus[sku.ID] = copySKU(sku)
		st.appendOutbox(rows)
		return nil
	})
	if err != nil {
		return err
	}
	sku.ClearDomainEvents()
	return nil
}
