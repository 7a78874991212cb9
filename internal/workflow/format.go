package workflow

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// metadata keys left out of formatted output
var skipKeys = map[string]bool{
	"success":       true,
	"timestamp":     true,
	"analysis_type": true,
	"data_type":     true,
	"result":        true,
}

// FormatData renders a step result as markdown. A map carrying a string
// "analysis" prints that text; other maps become one section per key.
func FormatData(title string, data any) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	m, ok := data.(map[string]any)
	if !ok {
		b.WriteString(formatScalar(data))
		return strings.TrimRight(b.String(), "\n")
	}
	if text, ok := m["analysis"].(string); ok {
		b.WriteString(strings.TrimSpace(text))
		return b.String()
	}
	for _, k := range sortedKeys(m) {
		if skipKeys[k] {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", TitleCase(k))
		writeValue(&b, m[k], 0)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeValue(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			switch child := t[k].(type) {
			case map[string]any, []any, []string:
				fmt.Fprintf(b, "%s- **%s**:\n", indent, TitleCase(k))
				writeValue(b, child, depth+1)
			default:
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, TitleCase(k), formatScalar(child))
			}
		}
	case []any:
		if len(t) == 0 {
			fmt.Fprintf(b, "%s- (none)\n", indent)
		}
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				fmt.Fprintf(b, "%s- %s\n", indent, inlineMap(m))
				continue
			}
			fmt.Fprintf(b, "%s- %s\n", indent, formatScalar(item))
		}
	case []string:
		for _, item := range t {
			fmt.Fprintf(b, "%s- %s\n", indent, item)
		}
	default:
		fmt.Fprintf(b, "%s%s\n", indent, formatScalar(v))
	}
}

func inlineMap(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatScalar(m[k])))
	}
	return strings.Join(parts, ", ")
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case int:
		return humanize.Comma(int64(t))
	case int64:
		return humanize.Comma(t)
	case float64:
		return FormatNumber(t)
	case map[string]any:
		return inlineMap(t)
	}
	return Stringify(v)
}

// FormatNumber groups thousands and keeps four decimals for non-integers.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return humanize.Comma(int64(f))
	}
	return humanize.FormatFloat("#,###.####", f)
}

// TitleCase turns snake_case into "Snake Case".
func TitleCase(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
