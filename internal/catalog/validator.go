package catalog

// Package catalog provides catalog validation.

import (
	"fmt"
	"strings"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(catalog *Catalog) error {
	if catalog.Currency != "usd" {
		return fmt.Errorf("only USD currency is supported")
	}

	if len(catalog.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}

	ids := make(map[string]bool)
	for i, service := range catalog.Services {
		if err := v.validateService(&service); err != nil {
			return fmt.Errorf("service %d validation failed: %w", i, err)
		}

		if ids[service.ID] {
			return fmt.Errorf("duplicate service id: %s", service.ID)
		}
		ids[service.ID] = true
	}

	return nil
}

func (v *Validator) validateService(service *ServiceConfig) error {
	if strings.TrimSpace(service.ID) == "" {
		return fmt.Errorf("service id is required")
	}

	if strings.TrimSpace(service.Name) == "" {
		return fmt.Errorf("service name is required")
	}

	if len(service.Items) == 0 && service.PerKgCents == 0 {
		return fmt.Errorf("service %s must define items or a per-kg price", service.ID)
	}

	if len(service.Items) > 0 && service.PerKgCents > 0 {
		return fmt.Errorf("service %s cannot mix per-item and per-kg pricing", service.ID)
	}

	if service.PerKgCents < 0 {
		return fmt.Errorf("service %s per-kg price must be positive", service.ID)
	}

	itemNames := make(map[string]bool)
	for _, item := range service.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("service %s has an item without a name", service.ID)
		}
		if item.UnitPriceCents <= 0 {
			return fmt.Errorf("item %s unit price must be positive", item.Name)
		}
		if itemNames[item.Name] {
			return fmt.Errorf("service %s has duplicate item: %s", service.ID, item.Name)
		}
		itemNames[item.Name] = true
	}

	return nil
}
