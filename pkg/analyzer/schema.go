package analyzer

// specSchema is the JSON Schema enforcing §4.3's validation rules: a
// non-empty base_image, a string array of system_packages, a typed
// runtime_deps mapping, tool_configs with at least cli and web_search
// sub-objects, and at least 5 eval_goals.
const specSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["base_image", "system_packages", "runtime_deps", "tool_configs", "eval_goals"],
  "properties": {
    "base_image": {
      "type": "string",
      "minLength": 1
    },
    "system_packages": {
      "type": "array",
      "items": {"type": "string"}
    },
    "runtime_deps": {
      "type": "object",
      "required": ["manager", "packages"],
      "properties": {
        "manager": {"type": "string"},
        "packages": {"type": "object"}
      }
    },
    "tool_configs": {
      "type": "object",
      "required": ["cli", "web_search"],
      "properties": {
        "cli": {"type": "object"},
        "web_search": {"type": "object"}
      }
    },
    "eval_goals": {
      "type": "array",
      "minItems": 5,
      "items": {"type": "string"}
    }
  }
}`
