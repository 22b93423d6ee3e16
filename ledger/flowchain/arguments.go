package flowchain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohitkumar/txflow/model"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
)

const maxExactFloat = 1 << 53

// ToCadence converts a typed argument into the cadence value sent with the transaction.
func ToCadence(arg model.Argument) (cadence.Value, error) {
	if arg.Optional {
		if arg.Value == nil {
			return cadence.NewOptional(nil), nil
		}
		inner, err := toCadence(arg.Type, arg.Value)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		return cadence.NewOptional(inner), nil
	}
	if arg.Value == nil {
		return nil, fmt.Errorf("argument %s: value required for %s", arg.Name, arg.Type)
	}
	v, err := toCadence(arg.Type, arg.Value)
	if err != nil {
		return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
	}
	return v, nil
}

func toCadence(t model.ArgType, value any) (cadence.Value, error) {
	switch t {
	case model.ARG_STRING:
		return cadence.NewString(fmt.Sprintf("%v", value))
	case model.ARG_UINT8:
		n, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("%d overflows UInt8", n)
		}
		return cadence.NewUInt8(uint8(n)), nil
	case model.ARG_UINT64:
		n, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		return cadence.NewUInt64(n), nil
	case model.ARG_ADDRESS:
		s, ok := value.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("address must be a hex string, got %v", value)
		}
		return cadence.NewAddress(flow.HexToAddress(s)), nil
	case model.ARG_FIX64:
		return cadence.NewFix64(toFixedPoint(value))
	case model.ARG_UFIX64:
		return cadence.NewUFix64(toFixedPoint(value))
	case model.ARG_BOOL:
		switch b := value.(type) {
		case bool:
			return cadence.NewBool(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, err
			}
			return cadence.NewBool(parsed), nil
		}
		return nil, fmt.Errorf("invalid bool %v", value)
	case model.ARG_STRING_MAP:
		pairs, err := toStringPairs(value)
		if err != nil {
			return nil, err
		}
		return cadence.NewDictionary(pairs), nil
	case model.ARG_UINT64_LIST:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", value)
		}
		values := make([]cadence.Value, 0, len(items))
		for _, item := range items {
			if item == nil {
				values = append(values, cadence.NewOptional(nil))
				continue
			}
			n, err := toUint64(item)
			if err != nil {
				return nil, err
			}
			values = append(values, cadence.NewOptional(cadence.NewUInt64(n)))
		}
		return cadence.NewArray(values), nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", t)
}

func toStringPairs(value any) ([]cadence.KeyValuePair, error) {
	var pairs []cadence.KeyValuePair
	add := func(k string, v any) error {
		key, err := cadence.NewString(k)
		if err != nil {
			return err
		}
		val, err := cadence.NewString(fmt.Sprintf("%v", v))
		if err != nil {
			return err
		}
		pairs = append(pairs, cadence.KeyValuePair{Key: key, Value: val})
		return nil
	}
	switch m := value.(type) {
	case map[string]string:
		for k, v := range m {
			if err := add(k, v); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for k, v := range m {
			if err := add(k, v); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("expected string map, got %T", value)
	}
	return pairs, nil
}

func toUint64(value any) (uint64, error) {
	switch n := value.(type) {
	case uint64:
		return n, nil
	case uint8:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an unsigned integer", n)
		}
		// above 2^53 the float may already be a neighbouring id
		if n >= maxExactFloat {
			return 0, fmt.Errorf("%v is too large to be exact, send it as a string or json number", n)
		}
		return uint64(n), nil
	case json.Number:
		return strconv.ParseUint(n.String(), 10, 64)
	case string:
		return strconv.ParseUint(n, 10, 64)
	}
	return 0, fmt.Errorf("%v (%T) is not an unsigned integer", value, value)
}

// toFixedPoint renders numbers the way cadence fixed point parsing expects them.
func toFixedPoint(value any) string {
	switch n := value.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', 8, 64)
	case int:
		return strconv.Itoa(n) + ".0"
	case int64:
		return strconv.FormatInt(n, 10) + ".0"
	case uint64:
		return strconv.FormatUint(n, 10) + ".0"
	case json.Number:
		if strings.ContainsAny(n.String(), "eE") {
			if f, err := n.Float64(); err == nil {
				return strconv.FormatFloat(f, 'f', 8, 64)
			}
		}
	}
	s := fmt.Sprintf("%v", value)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FromCadence converts event field values into plain Go values for model.Event payloads.
func FromCadence(v cadence.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case cadence.String:
		return string(val)
	case cadence.UInt64:
		return uint64(val)
	case cadence.UInt8:
		return uint8(val)
	case cadence.Bool:
		return bool(val)
	case cadence.Address:
		return "0x" + val.Hex()
	case cadence.Optional:
		return FromCadence(val.Value)
	case cadence.Array:
		out := make([]any, 0, len(val.Values))
		for _, item := range val.Values {
			out = append(out, FromCadence(item))
		}
		return out
	case cadence.Dictionary:
		out := make(map[string]any, len(val.Pairs))
		for _, pair := range val.Pairs {
			out[fmt.Sprintf("%v", FromCadence(pair.Key))] = FromCadence(pair.Value)
		}
		return out
	default:
		return v.String()
	}
}
