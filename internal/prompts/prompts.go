// Package prompts loads the persona prompt pack: the system prompts for the
// three pipeline personas and the templated fallback replies used when every
// LLM provider fails. The pack is plain JSON so prompt edits never require a
// rebuild, and it is validated against an embedded schema at startup so a
// typo'd key fails fast instead of silently producing empty prompts.
package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed default_pack.json
var defaultPackJSON []byte

//go:embed pack_schema.json
var packSchemaJSON string

// Persona is one pipeline agent: a display name and a system prompt
// template. Templates may reference {missing_fields} and {condition}.
type Persona struct {
	Name   string `json:"name"`
	System string `json:"system"`
}

// Fallbacks are the local reply templates substituted when no provider
// answers.
type Fallbacks struct {
	Greeting      string `json:"greeting"`
	MissingFields string `json:"missing_fields"`
	Medical       string `json:"medical"`
	General       string `json:"general"`
}

// Pack is the full validated prompt pack.
type Pack struct {
	Personas struct {
		Collector Persona `json:"collector"`
		Reasoner  Persona `json:"reasoner"`
		Extractor Persona `json:"extractor"`
	} `json:"personas"`
	Fallbacks Fallbacks `json:"fallbacks"`
}

// Load reads and validates a prompt pack. An empty path loads the embedded
// default pack, which is validated too so a bad edit is caught in tests.
func Load(path string) (*Pack, error) {
	data := defaultPackJSON
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt pack: %w", err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Pack, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("pack_schema.json", strings.NewReader(packSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load prompt pack schema: %w", err)
	}
	schema, err := compiler.Compile("pack_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile prompt pack schema: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("parse prompt pack: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("invalid prompt pack: %w", err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("decode prompt pack: %w", err)
	}
	return &pack, nil
}

// Render substitutes the recognized template tokens into a prompt or
// fallback template.
func Render(template string, missing []string, condition string) string {
	out := strings.ReplaceAll(template, "{missing_fields}", humanizeFields(missing))
	if condition == "" {
		condition = "your health concern"
	}
	return strings.ReplaceAll(out, "{condition}", condition)
}

// humanizeFields turns field identifiers into readable phrasing:
// ["zip_code","insurance"] becomes "ZIP code and insurance provider".
func humanizeFields(fields []string) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f {
		case "medical_condition":
			names = append(names, "medical concern")
		case "zip_code":
			names = append(names, "ZIP code")
		case "phone_number":
			names = append(names, "phone number")
		case "insurance":
			names = append(names, "insurance provider")
		default:
			names = append(names, f)
		}
	}
	switch len(names) {
	case 0:
		return "nothing further"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
