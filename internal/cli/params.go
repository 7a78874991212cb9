package cli

import (
	"fmt"
	"strings"
)

// runFlags are the flags of the run command.
type runFlags struct {
	verbose     bool
	quiet       bool
	interactive bool
	pair        string
	query       string
	days        int
	params      []string
}

// buildParams merges the shortcut flags and -p key=value pairs. Explicit
// -p pairs win over the shortcuts.
func (f runFlags) buildParams() (map[string]any, error) {
	params := map[string]any{}
	if f.pair != "" {
		params["currency_pair"] = strings.ToUpper(strings.TrimSpace(f.pair))
	}
	if f.query != "" {
		params["user_query"] = f.query
	}
	if f.days > 0 {
		params["analysis_days"] = f.days
	}
	for _, kv := range f.params {
		key, value, found := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}
