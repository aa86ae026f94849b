package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"crmflow/pkg/condition"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// probeOrder fixes the lookup order across sub-contexts when a token's
// first segment does not name one explicitly.
var probeOrder = []string{"payload", "contact", "results"}

// Render substitutes {{path}} tokens in tmpl using ctx, a map of named
// sub-contexts (payload, contact, results). A path whose first segment
// names a sub-context resolves inside it; otherwise every sub-context is
// probed in a fixed order. Unresolved tokens stay verbatim.
func Render(tmpl string, ctx map[string]interface{}) string {
	return render(tmpl, ctx, false)
}

// RenderJSON renders an arbitrary JSON-serializable body: it serializes,
// substitutes with JSON-escaped replacement values so quotes in values
// cannot break the document, and re-parses. Returns an error if the
// rendered document is no longer valid JSON.
func RenderJSON(body interface{}, ctx map[string]interface{}) (interface{}, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template body: %w", err)
	}

	rendered := render(string(raw), ctx, true)

	var out interface{}
	if err := json.Unmarshal([]byte(rendered), &out); err != nil {
		return nil, fmt.Errorf("rendered body is not valid JSON: %w", err)
	}
	return out, nil
}

func render(tmpl string, ctx map[string]interface{}, jsonEscape bool) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := lookup(ctx, path)
		if !ok {
			return token
		}

		text := stringifyValue(value)
		if jsonEscape {
			escaped, err := json.Marshal(text)
			if err != nil {
				return token
			}
			// Drop only the marshal-added quote pair; a value ending in
			// an escaped quote must keep its backslash.
			return string(escaped[1 : len(escaped)-1])
		}
		return text
	})
}

func lookup(ctx map[string]interface{}, path string) (interface{}, bool) {
	head, rest, nested := strings.Cut(path, ".")

	// First segment names a sub-context: resolve inside it only.
	if sub, ok := ctx[head]; ok {
		if !nested {
			return sub, sub != nil
		}
		if subMap, isMap := sub.(map[string]interface{}); isMap {
			if v := condition.Resolve(subMap, rest); v != nil {
				return v, true
			}
		}
		return nil, false
	}

	// Otherwise probe sub-contexts in a stable order.
	for _, name := range subContextNames(ctx) {
		subMap, isMap := ctx[name].(map[string]interface{})
		if !isMap {
			continue
		}
		if v := condition.Resolve(subMap, path); v != nil {
			return v, true
		}
	}
	return nil, false
}

func subContextNames(ctx map[string]interface{}) []string {
	names := make([]string, 0, len(ctx))
	seen := make(map[string]bool, len(ctx))
	for _, name := range probeOrder {
		if _, ok := ctx[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range ctx {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Avoid "1e+06" style output for whole numbers coming from JSON.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(t)
		if err == nil {
			return string(raw)
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
