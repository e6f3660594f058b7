package serializer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IValueSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IValueSerializer using a custom binary format.
// Each serialized value starts with a one-byte type tag followed by the raw
// payload; strings and byte slices are stored verbatim, numbers fixed-width
// big-endian. Only the primitive types an application typically uses as keys
// and small values are supported; structured values belong to the json or gob
// serializers.
type binarySerializerImpl struct {
}

// Type tags identifying the serialized payload
const (
	tagBytes byte = iota
	tagString
	tagBool
	tagInt64
	tagUint64
	tagFloat64
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (s binarySerializerImpl) Serialize(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		result := make([]byte, 1+len(val))
		result[0] = tagBytes
		copy(result[1:], val)
		return result, nil

	case string:
		result := make([]byte, 1+len(val))
		result[0] = tagString
		copy(result[1:], val)
		return result, nil

	case bool:
		result := make([]byte, 2)
		result[0] = tagBool
		if val {
			result[1] = 1
		}
		return result, nil

	case int:
		return s.Serialize(int64(val))

	case int64:
		result := make([]byte, 9)
		result[0] = tagInt64
		binary.BigEndian.PutUint64(result[1:], uint64(val))
		return result, nil

	case uint64:
		result := make([]byte, 9)
		result[0] = tagUint64
		binary.BigEndian.PutUint64(result[1:], val)
		return result, nil

	case float64:
		result := make([]byte, 9)
		result[0] = tagFloat64
		binary.BigEndian.PutUint64(result[1:], math.Float64bits(val))
		return result, nil

	default:
		return nil, fmt.Errorf("binary serializer does not support type %T", v)
	}
}

func (s binarySerializerImpl) Deserialize(b []byte, v interface{}) error {
	if len(b) == 0 {
		return fmt.Errorf("empty payload")
	}

	tag, payload := b[0], b[1:]

	switch target := v.(type) {
	case *[]byte:
		if tag != tagBytes {
			return fmt.Errorf("payload is not a byte slice")
		}
		*target = append([]byte(nil), payload...)
		return nil

	case *string:
		if tag != tagString {
			return fmt.Errorf("payload is not a string")
		}
		*target = string(payload)
		return nil

	case *bool:
		if tag != tagBool || len(payload) != 1 {
			return fmt.Errorf("payload is not a bool")
		}
		*target = payload[0] == 1
		return nil

	case *int:
		var i int64
		if err := s.Deserialize(b, &i); err != nil {
			return err
		}
		*target = int(i)
		return nil

	case *int64:
		if tag != tagInt64 || len(payload) != 8 {
			return fmt.Errorf("payload is not an int64")
		}
		*target = int64(binary.BigEndian.Uint64(payload))
		return nil

	case *uint64:
		if tag != tagUint64 || len(payload) != 8 {
			return fmt.Errorf("payload is not a uint64")
		}
		*target = binary.BigEndian.Uint64(payload)
		return nil

	case *float64:
		if tag != tagFloat64 || len(payload) != 8 {
			return fmt.Errorf("payload is not a float64")
		}
		*target = math.Float64frombits(binary.BigEndian.Uint64(payload))
		return nil

	default:
		return fmt.Errorf("binary serializer does not support target type %T", v)
	}
}
