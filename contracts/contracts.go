// Package contracts embeds the OpenAPI documents served and enforced by the API.
package contracts

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed tenants.yaml
var tenantsYAML []byte

// Documents maps the public documentation name to its loader.
var Documents = map[string]func() (*openapi3.T, error){
	"tenants": LoadTenants,
}

// LoadTenants parses and validates the tenant-management contract.
func LoadTenants() (*openapi3.T, error) {
	return load("tenants", tenantsYAML)
}

func load(name string, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load %s contract: %w", name, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate %s contract: %w", name, err)
	}
	return doc, nil
}
