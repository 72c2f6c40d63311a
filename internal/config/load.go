package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// planSchema closes the plan so unknown CUE fields are rejected.
const planSchema = `
#Plan: {
	mode?:     "continuous" | "on-demand" | "manual"
	interval?: string
	phases?: [...#Phase]
	roots?: [...string & !=""]
	jobs?: [...#Job]
}

#Phase: {
	name:    string & !=""
	before?: string
	after?:  string
}

#Job: {
	id:        string & !=""
	root?:     string
	phase?:    string
	before?: [...string]
	after?: [...string]
	priority?: int
	fps?:      number & >=0
	drop?:     bool
	enabled?:  bool
}
`

// Load reads a plan file, choosing the decoder by extension, and validates it.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p *Plan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		p, err = ParseYAML(data)
	case ".cue":
		p, err = ParseCUE(data, filepath.Base(path))
	default:
		return nil, fmt.Errorf("unsupported plan format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return p, nil
}

// ParseYAML decodes a YAML plan. Unknown fields are an error. The plan is not
// validated.
func ParseYAML(data []byte) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &p, nil
}

// ParseCUE compiles a CUE plan, checks it against the plan schema and
// decodes it. filename is only used in error positions. The plan is not
// validated.
func ParseCUE(data []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(planSchema, cue.Filename("plan-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building plan schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE plan: %w", err)
	}

	value = schema.LookupPath(cue.ParsePath("#Plan")).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE plan does not match schema: %w", err)
	}

	var p Plan
	if err := value.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding CUE plan: %w", err)
	}
	return &p, nil
}
