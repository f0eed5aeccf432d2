package devices

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/module-profile-v1.json
var moduleProfileSchemaJSON string

type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("module-profile-v1.json",
		strings.NewReader(moduleProfileSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("module-profile-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateProfile checks JSON profile data against the embedded schema.
func (v *Validator) ValidateProfile(data []byte) error {
	var profile interface{}
	if err := json.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(profile); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
