// Package script loads and runs scenario files: JSON sequences of
// click, move, key, and wait steps executed through the controller.
// Files are validated against the embedded schema before anything is
// submitted, so a malformed scenario fails before the first injection
// rather than halfway through one.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"frameinject/internal/gesture"
)

//go:embed scenario-v1.schema.json
var schemaJSON []byte

const schemaURL = "https://frameinject.dev/schema/scenario-v1.schema.json"

// Step is one scenario step.
type Step struct {
	Op   string `json:"op"`
	X    int    `json:"x,omitempty"`
	Y    int    `json:"y,omitempty"`
	Code int    `json:"code,omitempty"`
	Ms   int    `json:"ms,omitempty"`
}

// Scenario is a validated scenario file.
type Scenario struct {
	Version int    `json:"version"`
	Name    string `json:"name,omitempty"`
	Steps   []Step `json:"steps"`
}

// Submitter is the slice of the controller a scenario needs.
type Submitter interface {
	Submit(ctx context.Context, cmd gesture.Command) error
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add scenario schema: %w", err)
	}
	return compiler.Compile(schemaURL)
}

// Load reads, validates, and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes scenario bytes.
func Parse(data []byte) (*Scenario, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

// Run executes the scenario's steps in order, stopping at the first
// failed submission. Wait steps are the scenario author's pacing, on
// top of the per-command phase pacing the shim already provides.
func Run(ctx context.Context, s *Scenario, sub Submitter, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	for i, step := range s.Steps {
		log.Info("scenario step", "index", i, "op", step.Op)
		switch step.Op {
		case "click":
			if err := sub.Submit(ctx, gesture.Command{
				Kind: gesture.KindClick, X: int32(step.X), Y: int32(step.Y),
			}); err != nil {
				return fmt.Errorf("step %d (click %d,%d): %w", i, step.X, step.Y, err)
			}
		case "move":
			if err := sub.Submit(ctx, gesture.Command{
				Kind: gesture.KindMove, X: int32(step.X), Y: int32(step.Y),
			}); err != nil {
				return fmt.Errorf("step %d (move %d,%d): %w", i, step.X, step.Y, err)
			}
		case "key":
			if err := sub.Submit(ctx, gesture.Command{
				Kind: gesture.KindKeypress, Key: int32(step.Code),
			}); err != nil {
				return fmt.Errorf("step %d (key %d): %w", i, step.Code, err)
			}
		case "wait":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(step.Ms) * time.Millisecond):
			}
		default:
			// Unreachable for schema-validated scenarios.
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}
	return nil
}
