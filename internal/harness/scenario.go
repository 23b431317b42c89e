package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pxflux/internal/emulator"
	"github.com/roach88/pxflux/internal/tree"
)

// Scenario is one end-to-end run.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Options Options `yaml:"options,omitempty"`

	// Identities exist in the auth backend before the first step.
	Identities []string `yaml:"identities,omitempty"`

	// Seed is written to the tree without firing triggers.
	Seed tree.Node `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options mirror handlers.Options.
type Options struct {
	KeepPinAccountID bool `yaml:"keep_pin_account_id"`
}

// Step performs exactly one action.
type Step struct {
	Write         *emulator.Write `yaml:"write,omitempty"`
	AuthCreated   *AuthUser       `yaml:"auth_created,omitempty"`
	AuthDeleted   string          `yaml:"auth_deleted,omitempty"`
	SwitchAccount *SwitchAccount  `yaml:"switch_account,omitempty"`
	VerifyPin     string          `yaml:"verify_pin,omitempty"`

	// ExpectError is a substring of an error the step must produce, either
	// from the action itself or from a handler in its cascade.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// AuthUser is an auth signup.
type AuthUser struct {
	UID         string `yaml:"uid"`
	DisplayName string `yaml:"display_name,omitempty"`
	PhotoURL    string `yaml:"photo_url,omitempty"`
}

// SwitchAccount is a switch-account call. The caller's current account is
// taken from its claims.
type SwitchAccount struct {
	UID       string `yaml:"uid"`
	AccountID string `yaml:"account_id"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of equals, absent, fields, claims, blobs_deleted.
	Type string `yaml:"type"`

	Path   string         `yaml:"path,omitempty"`
	Value  any            `yaml:"value,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`

	UID    string         `yaml:"uid,omitempty"`
	Claims map[string]any `yaml:"claims,omitempty"`

	Blobs []string `yaml:"blobs,omitempty"`
}

// Assertion type constants.
const (
	AssertEquals       = "equals"
	AssertAbsent       = "absent"
	AssertFields       = "fields"
	AssertClaims       = "claims"
	AssertBlobsDeleted = "blobs_deleted"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	actions := 0
	if step.Write != nil {
		actions++
		if step.Write.Path == "" {
			return fmt.Errorf("write: path is required")
		}
		switch step.Write.Op {
		case "", emulator.OpSet, emulator.OpMerge, emulator.OpRemove:
		default:
			return fmt.Errorf("write: unknown op %q", step.Write.Op)
		}
	}
	if step.AuthCreated != nil {
		actions++
		if step.AuthCreated.UID == "" {
			return fmt.Errorf("auth_created: uid is required")
		}
	}
	if step.AuthDeleted != "" {
		actions++
	}
	if step.SwitchAccount != nil {
		actions++
		if step.SwitchAccount.UID == "" {
			return fmt.Errorf("switch_account: uid is required")
		}
	}
	if step.VerifyPin != "" {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("exactly one action is required, got %d", actions)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEquals, AssertAbsent, AssertFields:
		if a.Path == "" {
			return fmt.Errorf("%s: path is required", a.Type)
		}
		if a.Type == AssertFields && len(a.Fields) == 0 {
			return fmt.Errorf("fields: fields map is required")
		}
	case AssertClaims:
		if a.UID == "" {
			return fmt.Errorf("claims: uid is required")
		}
	case AssertBlobsDeleted:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
