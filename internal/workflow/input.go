package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

var ErrInvalidInput = errors.New("invalid input")

// InputSpec describes an input step's prompt and validation rules.
type InputSpec struct {
	Variable  string
	Prompt    string
	Type      string
	Default   string
	Required  bool
	Min       *float64
	Max       *float64
	MinLength int
	MaxLength int
	Choices   []string
}

// Prompter asks the user for one input value.
type Prompter interface {
	Ask(spec InputSpec) (string, error)
}

func inputSpec(s Step, ctx map[string]any) InputSpec {
	spec := InputSpec{
		Variable: s.Text("variable", "output"),
		Prompt:   Render(s.Text("prompt"), ctx),
		Type:     strings.ToLower(s.Text("input_type", "value_type")),
		Required: s.Bool("required"),
	}
	// "type" names the step kind, so the value type may sit under config.
	if cfg, ok := s["config"].(map[string]any); ok {
		if t := asString(cfg["type"]); t != "" {
			spec.Type = strings.ToLower(t)
		}
	}
	if spec.Type == "" {
		spec.Type = "string"
	}
	if spec.Prompt == "" {
		spec.Prompt = spec.Variable
	}
	if def, ok := s.field("default"); ok {
		spec.Default = Stringify(Resolve(def, ctx))
	} else if v, ok := ctx[spec.Variable]; ok {
		spec.Default = Stringify(v)
	}
	spec.Min = floatPtr(s.Value("min"))
	spec.Max = floatPtr(s.Value("max"))
	spec.MinLength, _ = toInt(s.Value("min_length"))
	spec.MaxLength, _ = toInt(s.Value("max_length"))
	if list, ok := s.Value("choices").([]any); ok {
		for _, c := range list {
			spec.Choices = append(spec.Choices, asString(c))
		}
	}
	return spec
}

func floatPtr(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func (e *Executor) input(r *run, s Step, ctx map[string]any) (any, error) {
	spec := inputSpec(s, ctx)
	if spec.Variable == "" {
		return nil, errors.New("input step needs a variable")
	}

	if v, ok := r.preset(spec.Variable); ok {
		val, err := ValidateInput(Stringify(v), spec)
		if err != nil {
			return nil, err
		}
		r.set(spec.Variable, val)
		return val, nil
	}

	var raw string
	if e.interactive {
		answer, err := e.prompter.Ask(spec)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", spec.Variable, err)
		}
		raw = strings.TrimSpace(answer)
	}
	if raw == "" {
		raw = spec.Default
	}
	if raw == "" && spec.Required && !e.interactive {
		return nil, fmt.Errorf("%w: %s is required and the run is not interactive", ErrInvalidInput, spec.Variable)
	}
	val, err := ValidateInput(raw, spec)
	if err != nil {
		return nil, err
	}
	r.set(spec.Variable, val)
	return val, nil
}

// ValidateInput converts value to the spec's type and checks its bounds.
func ValidateInput(value string, spec InputSpec) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if spec.Required {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, spec.Variable)
		}
		return "", nil
	}

	switch spec.Type {
	case "integer", "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidInput, value)
		}
		if err := checkRange(float64(n), spec); err != nil {
			return nil, err
		}
		return n, nil
	case "float", "number":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, value)
		}
		if err := checkRange(f, spec); err != nil {
			return nil, err
		}
		return f, nil
	case "choice":
		if !slices.Contains(spec.Choices, value) {
			return nil, fmt.Errorf("%w: choose one of %s", ErrInvalidInput, strings.Join(spec.Choices, ", "))
		}
		return value, nil
	case "boolean", "bool":
		switch strings.ToLower(value) {
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a yes/no answer", ErrInvalidInput, value)
	}

	n := utf8.RuneCountInString(value)
	if spec.MinLength > 0 && n < spec.MinLength {
		return nil, fmt.Errorf("%w: at least %d characters", ErrInvalidInput, spec.MinLength)
	}
	if spec.MaxLength > 0 && n > spec.MaxLength {
		return nil, fmt.Errorf("%w: at most %d characters", ErrInvalidInput, spec.MaxLength)
	}
	return value, nil
}

func checkRange(f float64, spec InputSpec) error {
	if spec.Min != nil && f < *spec.Min {
		return fmt.Errorf("%w: must be at least %v", ErrInvalidInput, *spec.Min)
	}
	if spec.Max != nil && f > *spec.Max {
		return fmt.Errorf("%w: must be at most %v", ErrInvalidInput, *spec.Max)
	}
	return nil
}
