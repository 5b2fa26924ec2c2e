package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://gridsnake.dev/schemas/"

var schemaFiles = map[string]string{
	TypeHello:       "hello.schema.json",
	TypeWelcome:     "welcome.schema.json",
	TypeInput:       "input.schema.json",
	TypeState:       "state.schema.json",
	TypeGameOver:    "game_over.schema.json",
	TypeSubmitScore: "submit_score.schema.json",
	TypeLeaderboard: "leaderboard.schema.json",
	TypeError:       "error.schema.json",
}

// Validator checks raw messages against the embedded JSON schemas.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range schemaFiles {
		s, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// DefaultValidator compiles the embedded schemas once per process.
func DefaultValidator() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// Validate checks raw against the schema registered for msgType.
func (v *Validator) Validate(msgType string, raw []byte) error {
	s, ok := v.byType[msgType]
	if !ok {
		return fmt.Errorf("no schema for message type %q", msgType)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
