package catalog

import (
	"encoding/json"
	"fmt"
)

// The persistence layer stores variant axes as snake_case JSON arrays.
// This file is the single mapping seam between that shape and the domain
// types; nothing else in the engine parses those rows.

type optionRow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents *int   `json:"price_cents"`
	Stock      *int   `json:"stock"`
}

type variantRow struct {
	ID         string `json:"id"`
	ColorName  string `json:"color_name"`
	SizeName   string `json:"size_name"`
	PriceCents *int   `json:"price_cents"`
	Stock      *int   `json:"stock"`
}

func decodeColors(raw []byte) ([]ColorOption, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []optionRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode colors: %w", err)
	}
	out := make([]ColorOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, ColorOption{ID: r.ID, Name: r.Name, PriceCents: r.PriceCents, Stock: r.Stock})
	}
	return out, nil
}

func decodeSizes(raw []byte) ([]SizeOption, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []optionRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode sizes: %w", err)
	}
	out := make([]SizeOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, SizeOption{ID: r.ID, Name: r.Name, PriceCents: r.PriceCents, Stock: r.Stock})
	}
	return out, nil
}

func decodeVariants(raw []byte) ([]VariantOption, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []variantRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	out := make([]VariantOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, VariantOption{
			ID: r.ID, ColorName: r.ColorName, SizeName: r.SizeName,
			PriceCents: r.PriceCents, Stock: r.Stock,
		})
	}
	return out, nil
}
