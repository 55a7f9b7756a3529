package config

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE []byte

// ErrSchema means a config file does not match the schema.
var ErrSchema = errors.New("config does not match schema")

// ValidateSchema checks YAML config data against the embedded CUE schema.
// Unknown keys are rejected.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}

	file, err := yaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("%w: cannot parse YAML: %w", ErrSchema, err)
	}
	configVal := ctx.BuildFile(file)
	if err := configVal.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}

	final := schema.LookupPath(cue.ParsePath("#Config")).Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return nil
}
