package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/catena-ai/catena-go/internal/content"
)

// JSONParser handles structured documents. Each top-level object member or
// array element becomes one fragment, typed by its JSON kind, so a record
// batch or a config document chunks along its natural boundaries instead
// of arbitrary character offsets.
type JSONParser struct{}

// NewJSONParser constructs a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// ContentType returns "json".
func (p *JSONParser) ContentType() string { return "json" }

// CanParse reports whether the payload is a valid JSON object or array.
// Bare scalars are left to the plaintext parser.
func (p *JSONParser) CanParse(payload string) bool {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	return json.Valid([]byte(trimmed))
}

// Parse splits the top level of the JSON document into fragments — object
// members sorted by key for deterministic order, array elements in place —
// and groups them into size-bounded blocks.
func (p *JSONParser) Parse(payload string, maxBlockSize int) (*content.ParsedResource, error) {
	trimmed := strings.TrimSpace(payload)

	var frags []content.Fragment
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("parser: invalid json object: %w", err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			frags = append(frags, content.Fragment{
				Content:   fmt.Sprintf("%s: %s", k, string(obj[k])),
				Order:     len(frags),
				Type:      jsonKind(obj[k]),
				ParentKey: k,
			})
		}

	case strings.HasPrefix(trimmed, "["):
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return nil, fmt.Errorf("parser: invalid json array: %w", err)
		}
		for i, el := range arr {
			frags = append(frags, content.Fragment{
				Content: string(el),
				Order:   len(frags),
				Type:    jsonKind(el),
				Metadata: map[string]any{
					"element_index": i,
				},
			})
		}

	default:
		return nil, fmt.Errorf("parser: payload is not a json object or array")
	}

	return finalise(p.ContentType(), content.BuildBlocks(frags, maxBlockSize)), nil
}

// jsonKind classifies a raw JSON value by its first byte.
func jsonKind(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "json_null"
	}
	switch trimmed[0] {
	case '{':
		return "json_object"
	case '[':
		return "json_array"
	case '"':
		return "json_string"
	case 't', 'f':
		return "json_bool"
	case 'n':
		return "json_null"
	default:
		return "json_number"
	}
}
