// Package catalogseed loads catalog reference data (suppliers, GSM and quality
// grades, products, SKUs) from a YAML file.
package catalogseed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
)

// Seed is the file layout
type Seed struct {
	Suppliers []Supplier `yaml:"suppliers"`
	GSMs      []GSM      `yaml:"gsms"`
	Qualities []Quality  `yaml:"qualities"`
	Products  []Product  `yaml:"products"`
	SKUs      []SKU      `yaml:"skus"`
}

type Supplier struct {
	ID   string `yaml:"id"`
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type GSM struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

type Quality struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type Product struct {
	ID         string `yaml:"id"`
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	CategoryID string `yaml:"categoryId"`
	GSMID      string `yaml:"gsmId"`
	QualityID  string `yaml:"qualityId"`
}

type SKU struct {
	ID          string `yaml:"id"`
	ProductID   string `yaml:"productId"`
	Code        string `yaml:"code"`
	WidthInches int    `yaml:"widthInches"`
}

// Load reads and checks a seed file
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML and checks references between its sections
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	if err := seed.check(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) check() error {
	gsms := make(map[string]bool, len(s.GSMs))
	for _, g := range s.GSMs {
		gsms[g.ID] = true
	}
	qualities := make(map[string]bool, len(s.Qualities))
	for _, q := range s.Qualities {
		qualities[q.ID] = true
	}
	products := make(map[string]bool, len(s.Products))
	for _, p := range s.Products {
		if !gsms[p.GSMID] {
			return fmt.Errorf("product %s: unknown gsm %q", p.ID, p.GSMID)
		}
		if !qualities[p.QualityID] {
			return fmt.Errorf("product %s: unknown quality %q", p.ID, p.QualityID)
		}
		products[p.ID] = true
	}
	for _, sku := range s.SKUs {
		if !products[sku.ProductID] {
			return fmt.Errorf("sku %s: unknown product %q", sku.ID, sku.ProductID)
		}
		if !domain.Width(sku.WidthInches).IsValid() {
			return fmt.Errorf("sku %s: width %d is not allowed", sku.ID, sku.WidthInches)
		}
	}
	return nil
}

// DomainSuppliers converts the supplier section
func (s *Seed) DomainSuppliers() []*domain.Supplier {
	out := make([]*domain.Supplier, len(s.Suppliers))
	for i, v := range s.Suppliers {
		out[i] = &domain.Supplier{ID: v.ID, Code: domain.NormalizeCode(v.Code), Name: v.Name}
	}
	return out
}

// DomainGSMs converts the GSM section
func (s *Seed) DomainGSMs() []*domain.GSM {
	out := make([]*domain.GSM, len(s.GSMs))
	for i, v := range s.GSMs {
		out[i] = &domain.GSM{ID: v.ID, Name: strings.TrimSpace(v.Name), Value: v.Value}
	}
	return out
}

// DomainQualities converts the quality section
func (s *Seed) DomainQualities() []*domain.Quality {
	out := make([]*domain.Quality, len(s.Qualities))
	for i, v := range s.Qualities {
		out[i] = &domain.Quality{ID: v.ID, Name: strings.TrimSpace(v.Name)}
	}
	return out
}

// DomainProducts converts the product section
func (s *Seed) DomainProducts() []*domain.Product {
	out := make([]*domain.Product, len(s.Products))
	for i, v := range s.Products {
		out[i] = &domain.Product{
			ID:         v.ID,
			Code:       v.Code,
			Name:       v.Name,
			CategoryID: v.CategoryID,
			GSMID:      v.GSMID,
			QualityID:  v.QualityID,
		}
	}
	return out
}

// DomainSKUs converts the SKU section
func (s *Seed) DomainSKUs() []*domain.SKU {
	out := make([]*domain.SKU, len(s.SKUs))
	for i, v := range s.SKUs {
		out[i] = &domain.SKU{ID: v.ID, ProductID: v.ProductID, Code: v.Code, WidthInches: domain.Width(v.WidthInches)}
	}
	return out
}
