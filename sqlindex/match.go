package sqlindex

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/viant/balltree/dataset"
	"modernc.org/sqlite/vtab"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeMatchArg accepts a features BLOB, or a string holding a JSON array,
// a base64 BLOB or a comma separated list.
func decodeMatchArg(v interface{}) ([]float32, error) {
	switch val := v.(type) {
	case []byte:
		features, err := dataset.DecodeFeatures(val)
		if err != nil {
			return nil, fmt.Errorf("sqlindex: MATCH blob: %w", err)
		}
		return features, nil
	case string:
		return decodeMatchString(val)
	default:
		return nil, fmt.Errorf("sqlindex: expected MATCH arg as BLOB or string, got %T", v)
	}
}

func decodeMatchString(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("sqlindex: MATCH string is empty")
	}
	if strings.HasPrefix(s, "[") {
		var values []float64
		if err := json.Unmarshal([]byte(s), &values); err != nil {
			return nil, fmt.Errorf("sqlindex: invalid MATCH array: %w", err)
		}
		out := make([]float32, len(values))
		for i, f := range values {
			out[i] = float32(f)
		}
		return out, nil
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]float32, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return nil, fmt.Errorf("sqlindex: invalid MATCH float %q: %w", p, err)
			}
			out = append(out, float32(f))
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		if out, err := dataset.DecodeFeatures(b); err == nil && len(out) > 0 {
			return out, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return []float32{float32(f)}, nil
	}
	return nil, fmt.Errorf("sqlindex: MATCH string must be a JSON array, base64 features or a CSV float list")
}

func asFloat(v vtab.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	default:
		return 0, fmt.Errorf("sqlindex: unsupported number type %T", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("sqlindex: cannot parse number %q: %w", s, err)
	}
	return f, nil
}

func asInt(v vtab.Value) (int, error) {
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("sqlindex: k must be an integer, %v given", val)
		}
		return int(val), nil
	case []byte:
		return strconv.Atoi(strings.TrimSpace(string(val)))
	case string:
		return strconv.Atoi(strings.TrimSpace(val))
	default:
		return 0, fmt.Errorf("sqlindex: unsupported integer type %T", v)
	}
}

func asString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("sqlindex: value is nil")
	default:
		return "", fmt.Errorf("sqlindex: unsupported string type %T", v)
	}
}

// sanitizeName converts a table name into a safe trigger identifier.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '.', '-', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// quoteLiteral returns s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
