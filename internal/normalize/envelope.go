// Package normalize turns loosely-typed API payloads into canonical view
// model records. Field and path alternatives are declared as ordered
// priority lists; the first candidate present wins.
package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/dgnsrekt/gexdash/internal/api"
)

// envelope is the common {ok, data} wrapper.
type envelope struct {
	OK      bool
	HasOK   bool
	Data    any
	HasData bool
	Root    any
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseEnvelope(raw []byte) envelope {
	root, err := decode(raw)
	if err != nil {
		return envelope{}
	}
	env := envelope{Root: root}
	obj, ok := root.(map[string]any)
	if !ok {
		return env
	}
	if v, ok := obj["ok"]; ok {
		env.HasOK = true
		env.OK, _ = v.(bool)
	}
	if v, ok := obj["data"]; ok && v != nil {
		env.HasData = true
		env.Data = v
	}
	return env
}

// mandatory enforces the {ok: true, data: {...}} contract of a required source.
func mandatory(src api.Source, raw []byte) (map[string]any, error) {
	env := parseEnvelope(raw)
	if !env.HasOK || !env.OK {
		return nil, &api.SchemaError{Source: src, Path: "ok"}
	}
	data, ok := env.Data.(map[string]any)
	if !env.HasData || !ok {
		return nil, &api.SchemaError{Source: src, Path: "data"}
	}
	return data, nil
}

// lookup walks path through nested objects. An empty path returns v itself.
func lookup(v any, path []string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// number reports v as a finite float64 when it is a JSON number.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// field returns the first key in keys that is present and numeric.
func field(obj map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			if f, ok := number(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// fieldOrZero is field with the "unknown" default.
func fieldOrZero(obj map[string]any, keys []string) float64 {
	f, _ := field(obj, keys)
	return f
}

// numericString accepts strings such as "512.5" that some upstreams emit.
func numericString(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truthy follows JSON-falsy rules: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if f, ok := number(v); ok {
			return f != 0
		}
		return true
	}
}
