package catalog

import "time"

// ColorOption and SizeOption are a product's variant axes. Each option may
// independently override the base price and carry its own stock count.
type ColorOption struct {
	ID         string
	Name       string
	PriceCents *int
	Stock      *int
}

type SizeOption struct {
	ID         string
	Name       string
	PriceCents *int
	Stock      *int
}

// VariantOption is one combination of the color/size cross-product.
type VariantOption struct {
	ID         string
	ColorName  string
	SizeName   string
	PriceCents *int
	Stock      *int
}

type Product struct {
	ID         string
	SellerID   string
	SellerName string
	Name       string
	PriceCents int
	Stock      int
	ImageURL   string
	Colors     []ColorOption
	Sizes      []SizeOption
	Variants   []VariantOption
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VariantSelector identifies the buyer's chosen options. All fields are
// optional; empty means "no selection on that axis".
type VariantSelector struct {
	ColorID   string `json:"color_id,omitempty"`
	SizeID    string `json:"size_id,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
}

func (s VariantSelector) IsZero() bool {
	return s.ColorID == "" && s.SizeID == "" && s.VariantID == ""
}

func (p *Product) ColorByID(id string) *ColorOption {
	for i := range p.Colors {
		if p.Colors[i].ID == id {
			return &p.Colors[i]
		}
	}
	return nil
}

func (p *Product) SizeByID(id string) *SizeOption {
	for i := range p.Sizes {
		if p.Sizes[i].ID == id {
			return &p.Sizes[i]
		}
	}
	return nil
}

func (p *Product) VariantByID(id string) *VariantOption {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// StockScope names the axis whose stock override governs a selection.
type StockScope string

const (
	ScopeProduct StockScope = ""
	ScopeColor   StockScope = "color"
	ScopeSize    StockScope = "size"
	ScopeVariant StockScope = "variant"
)

// StockFor returns the stock count governing the selected combination and
// the axis it came from. An option-level stock field supersedes the
// product-level one, most specific axis first.
func (p *Product) StockFor(sel VariantSelector) (int, StockScope) {
	if v := p.VariantByID(sel.VariantID); v != nil && v.Stock != nil {
		return *v.Stock, ScopeVariant
	}
	if c := p.ColorByID(sel.ColorID); c != nil && c.Stock != nil {
		return *c.Stock, ScopeColor
	}
	if s := p.SizeByID(sel.SizeID); s != nil && s.Stock != nil {
		return *s.Stock, ScopeSize
	}
	return p.Stock, ScopeProduct
}
