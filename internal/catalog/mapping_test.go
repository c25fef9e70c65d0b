package catalog

import "testing"

func intp(v int) *int { return &v }

func TestDecodeOptionRows(t *testing.T) {
	t.Parallel()

	t.Run("colors with overrides", func(t *testing.T) {
		raw := []byte(`[{"id":"c1","name":"Red","price_cents":1200,"stock":3},{"id":"c2","name":"Blue"}]`)
		colors, err := decodeColors(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(colors) != 2 {
			t.Fatalf("expected 2 colors, got %d", len(colors))
		}
		if colors[0].PriceCents == nil || *colors[0].PriceCents != 1200 {
			t.Fatalf("expected price override 1200, got %v", colors[0].PriceCents)
		}
		if colors[1].PriceCents != nil || colors[1].Stock != nil {
			t.Fatal("expected no overrides on second color")
		}
	})

	t.Run("variants carry axis names", func(t *testing.T) {
		raw := []byte(`[{"id":"v1","color_name":"Red","size_name":"M","price_cents":1500,"stock":2}]`)
		variants, err := decodeVariants(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if variants[0].ColorName != "Red" || variants[0].SizeName != "M" {
			t.Fatalf("unexpected variant %+v", variants[0])
		}
	})

	t.Run("empty input decodes to nil", func(t *testing.T) {
		if out, err := decodeSizes(nil); err != nil || out != nil {
			t.Fatalf("expected nil,nil; got %v,%v", out, err)
		}
	})

	t.Run("malformed json errors", func(t *testing.T) {
		if _, err := decodeColors([]byte(`{"not":"array"}`)); err == nil {
			t.Fatal("expected error on malformed colors")
		}
	})
}

func TestStockFor(t *testing.T) {
	t.Parallel()

	p := Product{
		Stock:  10,
		Colors: []ColorOption{{ID: "c1", Stock: intp(4)}},
		Sizes:  []SizeOption{{ID: "s1", Stock: intp(6)}},
		Variants: []VariantOption{
			{ID: "v1", Stock: intp(2)},
			{ID: "v2"}, // no stock override
		},
	}

	t.Run("variant stock supersedes everything", func(t *testing.T) {
		got, scope := p.StockFor(VariantSelector{VariantID: "v1", ColorID: "c1", SizeID: "s1"})
		if got != 2 || scope != ScopeVariant {
			t.Fatalf("expected 2 variant-scoped, got %d %q", got, scope)
		}
	})

	t.Run("variant-only selection reports the variant axis", func(t *testing.T) {
		// the scope drives which hold filter applies downstream, so a bare
		// variant id must not masquerade as a color/size selection
		got, scope := p.StockFor(VariantSelector{VariantID: "v1"})
		if got != 2 || scope != ScopeVariant {
			t.Fatalf("expected 2 variant-scoped, got %d %q", got, scope)
		}
	})

	t.Run("falls through a variant without override", func(t *testing.T) {
		got, scope := p.StockFor(VariantSelector{VariantID: "v2", ColorID: "c1"})
		if got != 4 || scope != ScopeColor {
			t.Fatalf("expected color stock 4, got %d %q", got, scope)
		}
	})

	t.Run("size override", func(t *testing.T) {
		got, scope := p.StockFor(VariantSelector{SizeID: "s1"})
		if got != 6 || scope != ScopeSize {
			t.Fatalf("expected size stock 6, got %d %q", got, scope)
		}
	})

	t.Run("product stock without selection", func(t *testing.T) {
		got, scope := p.StockFor(VariantSelector{})
		if got != 10 || scope != ScopeProduct {
			t.Fatalf("expected product stock 10, got %d %q", got, scope)
		}
	})
}
