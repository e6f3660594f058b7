package serializer

// IValueSerializer is the interface for all key/value serializers.
// It converts application values into the byte slices the engines store.
type IValueSerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v interface{}) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It takes a byte array and a pointer to the target value as parameters
	// It returns an error if any
	Deserialize(b []byte, v interface{}) error
}
