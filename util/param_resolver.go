package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRegex = regexp.MustCompile(`{(\$[^{}]*)}`)

// ResolveValue replaces every "{$.path}" token found in a string value, or in
// the strings nested in map and list values, by the json path lookup against data.
// A value that is exactly one token keeps the looked up value's type.
func ResolveValue(data map[string]any, value any) (any, error) {
	return resolveValue(data, value)
}

// ResolveParams resolves tokens inside a flat string map. A param that can not be
// resolved is left empty.
func ResolveParams(data map[string]any, params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		res, err := resolveString(data, v)
		if err != nil || res == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprintf("%v", res)
	}
	return out
}

func resolveValue(data map[string]any, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(data, v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			res, err := resolveValue(data, inner)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, inner := range v {
			res, err := resolveString(data, inner)
			if err != nil {
				return nil, err
			}
			out[k] = fmt.Sprintf("%v", res)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(v))
		for _, inner := range v {
			res, err := resolveValue(data, inner)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(data map[string]any, s string) (any, error) {
	tokens := tokenRegex.FindAllStringSubmatch(s, -1)
	if len(tokens) == 0 {
		return s, nil
	}
	if len(tokens) == 1 && tokens[0][0] == s {
		return lookup(data, tokens[0][1])
	}
	newStr := s
	for _, token := range tokens {
		value, err := lookup(data, token[1])
		if err != nil {
			return nil, err
		}
		newStr = strings.ReplaceAll(newStr, token[0], fmt.Sprintf("%v", value))
	}
	return newStr, nil
}

func lookup(data map[string]any, path string) (any, error) {
	value, err := jsonpath.JsonPathLookup(data, path)
	if err != nil {
		return nil, fmt.Errorf("can not resolve %s: %w", path, err)
	}
	return value, nil
}
