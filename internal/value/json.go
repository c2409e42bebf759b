package value

// FromGo converts a generic Go value — the shape produced by
// encoding/json.Unmarshal or goccy/go-yaml.Unmarshal into `any` — into
// a Value (spec §6.1's add_data/set_input accept "a JSON-shaped
// value"). Unrecognized Go types (anything neither decoder ever
// produces) become Undefined rather than panicking.
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case float64:
		return FloatValue(t)
	case int:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromGo(e)
		}
		return NewArray(elems)
	case map[string]any:
		pairs := make([]Pair, 0, len(t))
		for k, e := range t {
			pairs = append(pairs, Pair{Key: Str(k), Value: FromGo(e)})
		}
		return NewObject(pairs)
	default:
		return Undefined()
	}
}

// ToGo converts v back into plain Go data suitable for
// encoding/json.Marshal or goccy/go-yaml.Marshal (the engine's eval
// result / CLI output path). A Set renders as a sorted array (JSON has
// no set type) and Undefined renders as nil, matching how a missing
// document value reads back out.
func ToGo(v Value) any {
	switch v.Kind() {
	case KindNull, KindUndefined:
		return nil
	case KindBool:
		b, _ := v.AsBool()
		return b
	case KindNumber:
		n, _ := v.AsNumber()
		return n.AsFloat()
	case KindString:
		s, _ := v.AsString()
		return s
	case KindArray:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = ToGo(e)
		}
		return out
	case KindSet:
		s, _ := v.AsSet()
		items := s.Items()
		out := make([]any, len(items))
		for i, e := range items {
			out[i] = ToGo(e)
		}
		return out
	case KindObject:
		o, _ := v.AsObject()
		out := make(map[string]any, o.Len())
		for _, p := range o.Pairs() {
			if key, ok := p.Key.AsString(); ok {
				out[key] = ToGo(p.Value)
			}
		}
		return out
	default:
		return nil
	}
}
