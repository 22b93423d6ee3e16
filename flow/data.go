package flow

const (
	DATA_INPUT = "input"
	DATA_VARS  = "vars"
	DATA_STEPS = "steps"
)

func newData(input map[string]any) map[string]any {
	in, _ := copyValue(input).(map[string]any)
	if in == nil {
		in = map[string]any{}
	}
	return map[string]any{
		DATA_INPUT: in,
		DATA_VARS:  map[string]any{},
		DATA_STEPS: map[string]any{},
	}
}

func setSection(data map[string]any, section, key string, value map[string]any) {
	m, ok := data[section].(map[string]any)
	if !ok {
		m = map[string]any{}
		data[section] = m
	}
	m[key] = value
}

func mergeSection(data map[string]any, section string, values map[string]any) {
	m, ok := data[section].(map[string]any)
	if !ok {
		m = map[string]any{}
		data[section] = m
	}
	for k, v := range values {
		m[k] = copyValue(v)
	}
}

func copyData(data map[string]any) map[string]any {
	out, _ := copyValue(data).(map[string]any)
	return out
}

// copyValue deep copies the json like values stored in flow data.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = inner
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return v
	}
}
