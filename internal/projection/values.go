package projection

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	schema "github.com/hanpama/protofetch/internal/schema"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// serializeLeafValue converts a resolved scalar or enum value into its JSON
// representation. Bytes become standard base64, enum numbers become labels
// when typ is an enum, and messages nested in map values are encoded with
// protojson.
func serializeLeafValue(typ *schema.Type, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int32, int64, uint32, uint64, float32, float64:
		return v, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case protoreflect.EnumNumber:
		if typ != nil && typ.Enum != nil {
			if ev := typ.Enum.Values().ByNumber(v); ev != nil {
				return string(ev.Name()), nil
			}
		}
		return int32(v), nil
	case protoreflect.Message:
		return marshalMessage(v.Interface())
	case proto.Message:
		return marshalMessage(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			s, err := serializeLeafValue(nil, elem)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			s, err := serializeLeafValue(typ, elem)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	default:
		return v, nil
	}
}

func marshalMessage(m proto.Message) (any, error) {
	b, err := protojson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", m.ProtoReflect().Descriptor().FullName(), err)
	}
	return json.RawMessage(b), nil
}
