package projection

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// GetPath returns the value at a dot-separated path inside payload, or def
// when the payload is not valid JSON, the path is absent, or it resolves to
// null. Objects and arrays come back as their raw JSON text.
func GetPath(payload json.RawMessage, path, def string) string {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return def
	}
	res := gjson.GetBytes(payload, path)
	if !res.Exists() || res.Type == gjson.Null {
		return def
	}
	if s := res.String(); s != "" {
		return s
	}
	return def
}
