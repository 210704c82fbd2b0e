package core

import "fmt"

// ValueKind identifies the concrete variant held by a Value.
type ValueKind int

const (
	// KindFloat is a 64-bit floating point value.
	KindFloat ValueKind = iota
	// KindInt is a 64-bit signed integer value.
	KindInt
	// KindBool is a boolean value.
	KindBool
	// KindString is a free-form UTF-8 string value.
	KindString
	// KindName is an interned identifier-like string (case preserved,
	// compared exactly). Names are cheaper to reason about than free text
	// when used as discriminators in search criteria.
	KindName
	// KindVec3 is a 3-component vector value.
	KindVec3
	// KindRotation is an euler rotation value.
	KindRotation
	// KindTransform is a translation/rotation/scale value.
	KindTransform
	// KindBlob is an opaque user-defined payload identified by a type tag.
	KindBlob
)

// String returns the string representation of the value kind.
func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindName:
		return "name"
	case KindVec3:
		return "vec3"
	case KindRotation:
		return "rotation"
	case KindTransform:
		return "transform"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Value represents one typed metadata entry. Concrete variants implement the
// unexported isValue marker enabling a closed set; reading a value with the
// wrong expected kind is a typed failure (ErrValueKind), never a silent
// default.
type Value interface {
	// Kind returns the variant discriminator.
	Kind() ValueKind

	isValue()
}

// Float is a 64-bit floating point metadata value.
type Float float64

// Kind implements Value.
func (Float) Kind() ValueKind { return KindFloat }

func (Float) isValue() {}

// Int is a 64-bit signed integer metadata value.
type Int int64

// Kind implements Value.
func (Int) Kind() ValueKind { return KindInt }

func (Int) isValue() {}

// Bool is a boolean metadata value.
type Bool bool

// Kind implements Value.
func (Bool) Kind() ValueKind { return KindBool }

func (Bool) isValue() {}

// String is a free-form string metadata value.
type String string

// Kind implements Value.
func (String) Kind() ValueKind { return KindString }

func (String) isValue() {}

// Name is an identifier-like string metadata value.
type Name string

// Kind implements Value.
func (Name) Kind() ValueKind { return KindName }

func (Name) isValue() {}

// Vec3 is a 3-component vector metadata value.
type Vec3 struct {
	X, Y, Z float64
}

// Kind implements Value.
func (Vec3) Kind() ValueKind { return KindVec3 }

func (Vec3) isValue() {}

// Rotation is an euler rotation metadata value (degrees).
type Rotation struct {
	Pitch, Yaw, Roll float64
}

// Kind implements Value.
func (Rotation) Kind() ValueKind { return KindRotation }

func (Rotation) isValue() {}

// Transform combines translation, rotation and scale.
type Transform struct {
	Translation Vec3
	Rotation    Rotation
	Scale       Vec3
}

// Kind implements Value.
func (Transform) Kind() ValueKind { return KindTransform }

func (Transform) isValue() {}

// Blob wraps an arbitrary user-defined payload behind a runtime type tag.
// Consumers retrieve the payload with BlobAs, which fails typed on a tag or
// type mismatch instead of panicking.
type Blob struct {
	TypeTag string
	Payload any
}

// Kind implements Value.
func (Blob) Kind() ValueKind { return KindBlob }

func (Blob) isValue() {}

// AsFloat returns the float payload or ErrValueKind if v is not a Float.
func AsFloat(v Value) (float64, error) {
	f, ok := v.(Float)
	if !ok {
		return 0, fmt.Errorf("%w: have %s, want float", ErrValueKind, v.Kind())
	}
	return float64(f), nil
}

// AsInt returns the integer payload or ErrValueKind if v is not an Int.
func AsInt(v Value) (int64, error) {
	i, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("%w: have %s, want int", ErrValueKind, v.Kind())
	}
	return int64(i), nil
}

// AsBool returns the boolean payload or ErrValueKind if v is not a Bool.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("%w: have %s, want bool", ErrValueKind, v.Kind())
	}
	return bool(b), nil
}

// AsString returns the string payload or ErrValueKind if v is not a String.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", fmt.Errorf("%w: have %s, want string", ErrValueKind, v.Kind())
	}
	return string(s), nil
}

// AsName returns the name payload or ErrValueKind if v is not a Name.
func AsName(v Value) (string, error) {
	n, ok := v.(Name)
	if !ok {
		return "", fmt.Errorf("%w: have %s, want name", ErrValueKind, v.Kind())
	}
	return string(n), nil
}

// AsVec3 returns the vector payload or ErrValueKind if v is not a Vec3.
func AsVec3(v Value) (Vec3, error) {
	vec, ok := v.(Vec3)
	if !ok {
		return Vec3{}, fmt.Errorf("%w: have %s, want vec3", ErrValueKind, v.Kind())
	}
	return vec, nil
}

// AsRotation returns the rotation payload or ErrValueKind if v is not a Rotation.
func AsRotation(v Value) (Rotation, error) {
	r, ok := v.(Rotation)
	if !ok {
		return Rotation{}, fmt.Errorf("%w: have %s, want rotation", ErrValueKind, v.Kind())
	}
	return r, nil
}

// AsTransform returns the transform payload or ErrValueKind if v is not a Transform.
func AsTransform(v Value) (Transform, error) {
	t, ok := v.(Transform)
	if !ok {
		return Transform{}, fmt.Errorf("%w: have %s, want transform", ErrValueKind, v.Kind())
	}
	return t, nil
}

// BlobAs performs the safe downcast of a Blob payload to T. It fails with
// ErrValueKind when v is not a Blob and with ErrBlobType when the payload is
// not a T. The type tag travels with the blob for diagnostics and search but
// the downcast is validated against the concrete payload type.
func BlobAs[T any](v Value) (T, error) {
	var zero T
	b, ok := v.(Blob)
	if !ok {
		return zero, fmt.Errorf("%w: have %s, want blob", ErrValueKind, v.Kind())
	}
	payload, ok := b.Payload.(T)
	if !ok {
		return zero, fmt.Errorf("%w: tag %q holds %T, want %T", ErrBlobType, b.TypeTag, b.Payload, zero)
	}
	return payload, nil
}
