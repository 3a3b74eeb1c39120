package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bilbasen-scraper/models"
)

const defaultPageSize = 30

func intPtr(n int) *int { return &n }

// DefaultFilters is the search used when no filter file is given:
// retail electric Mercedes EQB cars, 250k-300k kr, registered 2024 or later.
func DefaultFilters() models.FilterPayload {
	return models.FilterPayload{
		PageSize:              defaultPageSize,
		Ownership:             "Retail",
		Category:              "Car",
		PriceRange:            models.PriceRange{From: intPtr(250000), To: intPtr(300000)},
		FirstRegistrationFrom: intPtr(2024),
		FuelTypes:             []string{"Electric"},
		Models: []models.ModelConstraint{
			{Make: "Mercedes", Values: []string{"ms-EQB-Klasse"}},
		},
	}
}

// LoadFilters reads a YAML filter file. An empty path yields DefaultFilters.
// A file replaces the defaults entirely; only a missing page size is filled in.
func LoadFilters(path string) (models.FilterPayload, error) {
	if path == "" {
		return DefaultFilters(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return models.FilterPayload{}, fmt.Errorf("config: read filters %s: %w", path, err)
	}
	return ParseFilters(raw)
}

// ParseFilters decodes and validates YAML filter content.
func ParseFilters(raw []byte) (models.FilterPayload, error) {
	var f models.FilterPayload
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return models.FilterPayload{}, fmt.Errorf("config: parse filters: %w", err)
	}
	if f.PageSize == 0 {
		f.PageSize = defaultPageSize
	}
	if err := f.Validate(); err != nil {
		return models.FilterPayload{}, err
	}
	return f, nil
}
