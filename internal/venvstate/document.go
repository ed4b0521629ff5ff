// Package venvstate manages the per-shell virtual environment records.
// The state is one JSON document under the mirror's environment subtree;
// the mirror copy is authoritative. Reads go through the API gateway
// alone, mutations are remote scripts that rewrite the document
// atomically, and every mutation is verified by re-reading.
package venvstate

import (
	"encoding/json"
	"fmt"
)

// StateFileName is the document's file name under <env-root>/venv/.
const StateFileName = "venv_states.json"

// ShellState is one shell's activation record.
type ShellState struct {
	ActiveEnv   string `json:"active_env"`
	EnvPath     string `json:"env_path"`
	ActivatedAt string `json:"activated_at"`
}

// Environment is one named environment with its package manifest.
type Environment struct {
	CreatedAt   string            `json:"created_at"`
	LastUpdated string            `json:"last_updated"`
	Packages    map[string]string `json:"packages"`
}

// Document is the whole state file. Shell IDs are top-level keys beside
// the reserved "environments" key, so (un)marshalling is custom.
type Document struct {
	Shells       map[string]*ShellState
	Environments map[string]*Environment
}

// environmentsKey is the one reserved top-level key.
const environmentsKey = "environments"

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("venvstate: parsing state document: %w", err)
	}

	d.Shells = map[string]*ShellState{}
	d.Environments = map[string]*Environment{}

	for key, val := range raw {
		if key == environmentsKey {
			if err := json.Unmarshal(val, &d.Environments); err != nil {
				return fmt.Errorf("venvstate: parsing environments: %w", err)
			}

			continue
		}

		state := &ShellState{}
		if err := json.Unmarshal(val, state); err != nil {
			return fmt.Errorf("venvstate: parsing shell state %q: %w", key, err)
		}

		d.Shells[key] = state
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Shells)+1)

	for id, state := range d.Shells {
		out[id] = state
	}

	if len(d.Environments) > 0 {
		out[environmentsKey] = d.Environments
	}

	return json.Marshal(out)
}

// Shell returns the state for a shell, or an empty record when the shell
// has nothing activated.
func (d *Document) Shell(shellID string) *ShellState {
	if d == nil || d.Shells == nil {
		return &ShellState{}
	}

	if state, ok := d.Shells[shellID]; ok {
		return state
	}

	return &ShellState{}
}
