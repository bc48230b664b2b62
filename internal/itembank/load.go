package itembank

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
)

//go:embed data/seed.json
var seedFS embed.FS

// SupportedMajor is the bank schema major version this build reads.
const SupportedMajor = "v1"

// File is the on-disk representation of an item bank.
type File struct {
	SchemaVersion string `json:"schema_version"`
	Name          string `json:"name,omitempty"`
	Items         []Item `json:"items"`
}

var bankSchemaDef = map[string]any{
	"type":     "object",
	"required": []any{"schema_version", "items"},
	"properties": map[string]any{
		"schema_version": map[string]any{"type": "string", "minLength": 1},
		"name":           map[string]any{"type": "string"},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "word", "gloss", "rank"},
				"properties": map[string]any{
					"id":    map[string]any{"type": "string", "minLength": 1},
					"word":  map[string]any{"type": "string", "minLength": 1},
					"gloss": map[string]any{"type": "string", "minLength": 1},
					"rank":  map[string]any{"type": "integer", "minimum": 1},
					"relations": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"kind", "target_id"},
							"properties": map[string]any{
								"kind":      map[string]any{"enum": []any{"opposite", "related", "confused"}},
								"target_id": map[string]any{"type": "string", "minLength": 1},
								"reason":    map[string]any{"type": "string"},
							},
						},
					},
					"embedding": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "number"},
					},
				},
			},
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func bankSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants plain decoded JSON, not Go literals.
		defBytes, err := json.Marshal(bankSchemaDef)
		if err != nil {
			compileErr = fmt.Errorf("marshal bank schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse bank schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const url = "schema://itembank.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	return compiled, compileErr
}

// Decode reads and validates a bank file. Validation covers the JSON
// schema, the schema_version major and the structural checks done by
// NewMemory.
func Decode(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidBank, err)
	}
	sch, err := bankSchema()
	if err != nil {
		return nil, fmt.Errorf("compile bank schema: %w", err)
	}
	if err := sch.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	var f File
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	if err := checkVersion(f.SchemaVersion); err != nil {
		return nil, err
	}
	if err := validateItems(f.Items); err != nil {
		return nil, err
	}
	return &f, nil
}

func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: missing schema_version", ErrInvalidBank)
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: schema_version %q is not a semantic version", ErrInvalidBank, v)
	}
	if semver.Major(v) != SupportedMajor {
		return fmt.Errorf("%w: schema_version %s unsupported (want %s.x)", ErrInvalidBank, v, SupportedMajor)
	}
	return nil
}

// LoadFile decodes the bank at path into a memory repository.
func LoadFile(path string, opts ...MemoryOption) (*MemoryRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank: %w", err)
	}
	defer f.Close()

	bank, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return NewMemory(bank.Items, opts...)
}

// SeedFile returns the embedded seed bank.
func SeedFile() *File {
	raw, err := seedFS.ReadFile("data/seed.json")
	if err != nil {
		panic(fmt.Sprintf("itembank: read seed: %v", err))
	}
	f, err := Decode(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("itembank: invalid seed: %v", err))
	}
	return f
}

// Seed returns a memory repository over the embedded seed bank.
func Seed(opts ...MemoryOption) *MemoryRepository {
	return MustMemory(SeedFile().Items, opts...)
}
