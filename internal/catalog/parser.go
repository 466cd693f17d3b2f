package catalog

// Package catalog provides service catalog parsing functionality.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the set of laundry services a storefront offers. A service is
// priced either per item (Items) or per kilogram (PerKgCents), never both.
type Catalog struct {
	Currency string          `yaml:"currency"`
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Active      bool         `yaml:"active"`
	Items       []ItemConfig `yaml:"items"`
	PerKgCents  int          `yaml:"per_kg_cents"`
}

type ItemConfig struct {
	Name           string `yaml:"name"`
	UnitPriceCents int    `yaml:"unit_price_cents"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &catalog, nil
}

func (p *Parser) ParseFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return p.Parse(content)
}
