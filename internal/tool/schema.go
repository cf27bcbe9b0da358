package tool

import (
	"encoding/json"
	"fmt"
)

// schemaNode is the subset of JSON Schema warden validates against:
// type, properties, required, items, and enum. Tools declaring richer
// schemas still validate on this subset; unknown keywords are ignored.
type schemaNode struct {
	Type                 string                `json:"type"`
	Properties           map[string]schemaNode `json:"properties"`
	Required             []string              `json:"required"`
	Items                *schemaNode           `json:"items"`
	Enum                 []any                 `json:"enum"`
	AdditionalProperties *bool                 `json:"additionalProperties"`
}

// ValidateArguments checks args against the tool's declared schema.
// A nil or empty schema accepts any well-formed JSON value. Any mismatch is
// reported as ErrInvalidArguments; the gate never creates a ledger entry for
// arguments that fail here.
func ValidateArguments(schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrInvalidArguments, err)
	}

	if len(schema) == 0 {
		return nil
	}

	var node schemaNode
	if err := json.Unmarshal(schema, &node); err != nil {
		return fmt.Errorf("%w: malformed schema: %v", ErrInvalidArguments, err)
	}

	if err := validateNode(node, value, "$"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func validateNode(node schemaNode, value any, path string) error {
	if len(node.Enum) > 0 {
		if !enumContains(node.Enum, value) {
			return fmt.Errorf("%s: value not in enum", path)
		}
	}

	switch node.Type {
	case "":
		// No type constraint.
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object", path)
		}
		for _, req := range node.Required {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		for key, val := range obj {
			prop, declared := node.Properties[key]
			if !declared {
				if node.AdditionalProperties != nil && !*node.AdditionalProperties {
					return fmt.Errorf("%s: unexpected property %q", path, key)
				}
				continue
			}
			if err := validateNode(prop, val, path+"."+key); err != nil {
				return err
			}
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		if node.Items != nil {
			for i, item := range arr {
				if err := validateNode(*node.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s: expected string", path)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number", path)
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("%s: expected integer", path)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean", path)
		}
	case "null":
		if value != nil {
			return fmt.Errorf("%s: expected null", path)
		}
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, node.Type)
	}

	return nil
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if candidate == value {
			return true
		}
	}
	return false
}
