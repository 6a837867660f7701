package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${name}; names are alphanumeric and underscore.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError returns an error when a variable is not found.
	// This is the default behavior.
	MissingError MissingAction = iota

	// MissingKeep keeps the placeholder as-is.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Expander substitutes ${name} placeholders. A bare $ is left alone, so
// prompt text may contain prices and shell snippets.
//
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
}

// NewExpander creates an Expander.
func NewExpander(action MissingAction) *Expander {
	return &Expander{missingAction: action}
}

// Expand replaces placeholders in s with values from vars.
// Errors are only returned under MissingError.
//
// Example:
//
//	exp := NewExpander(MissingError)
//	out, err := exp.Expand("用户需求是：${user_intent}", map[string]any{"user_intent": "周报"})
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprint(val)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingKeep:
			return match
		default:
			missing = append(missing, name)
			return match
		}
	})

	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// Variables lists the distinct placeholder names in s in order of first use.
func Variables(s string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
