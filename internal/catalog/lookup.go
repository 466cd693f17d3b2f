package catalog

import "fmt"

// FindService resolves a service id to its current configuration. Inactive
// services resolve as missing so they cannot be ordered.
func (c *Catalog) FindService(id string) (*ServiceConfig, error) {
	for i := range c.Services {
		service := &c.Services[i]
		if service.ID == id {
			if !service.Active {
				return nil, fmt.Errorf("service %s is not active", id)
			}
			return service, nil
		}
	}
	return nil, fmt.Errorf("service %s not found", id)
}

// ItemPrice resolves the current unit price of a named item within a
// service. Prices always come from the catalog, never from client input.
func (s *ServiceConfig) ItemPrice(name string) (int, error) {
	for _, item := range s.Items {
		if item.Name == name {
			return item.UnitPriceCents, nil
		}
	}
	return 0, fmt.Errorf("item %s not found in service %s", name, s.ID)
}

// PerWeight reports whether the service is priced per kilogram.
func (s *ServiceConfig) PerWeight() bool {
	return s.PerKgCents > 0
}
