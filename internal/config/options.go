package config

import "encoding/json"

// Options is a free-form settings bag for one flow, e.g. source URL
// overrides or repository lists. Accessors return def when a key is missing
// or has an unexpected type.
type Options map[string]any

// String returns the string value for key.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key. JSON decodes numbers as float64 and
// HCL as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// StringSlice returns key as a []string, dropping non-string elements.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// StringMap returns key as a map[string]string, dropping non-string values.
// HCL decodes a nested block as a list of maps, which is flattened.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	add := func(m map[string]any) {
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}
	switch v := o[key].(type) {
	case map[string]any:
		add(v)
	case []map[string]any:
		for _, m := range v {
			add(m)
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
