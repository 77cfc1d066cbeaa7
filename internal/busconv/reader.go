package busconv

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/godbus/dbus"

	"github.com/afreof/dbus-http/internal/introspect"
	"github.com/afreof/dbus-http/internal/jsonvalue"
	"github.com/afreof/dbus-http/internal/sig"
)

// DecodeElement converts a decoded Go value matching signature element elem
// into a JSON value. Arrays and D-Bus structs both become JSON arrays;
// dict-entry arrays become JSON objects; variants decode to the JSON shape
// of their contained value, unwrapped (the inverse operation, EncodeElement,
// requires an explicit wrapper because JSON alone cannot carry the variant's
// signature).
func DecodeElement(rv reflect.Value, elem string) (*jsonvalue.Value, error) {
	if elem == "" {
		return nil, fmt.Errorf("busconv: empty signature element")
	}

	switch elem[0] {
	case 'y':
		return jsonvalue.NewNumber(float64(rv.Uint())), nil
	case 'b':
		return jsonvalue.NewBool(rv.Bool()), nil
	case 'n', 'i', 'x':
		return jsonvalue.NewNumber(float64(rv.Int())), nil
	case 'q', 'u', 't':
		return jsonvalue.NewNumber(float64(rv.Uint())), nil
	case 'd':
		return jsonvalue.NewNumber(rv.Float()), nil
	case 's', 'o', 'g':
		if signature, ok := rv.Interface().(dbus.Signature); ok {
			return jsonvalue.NewString(signature.String()), nil
		}
		return jsonvalue.NewString(rv.String()), nil
	case 'h':
		return nil, fmt.Errorf("busconv: unix fd type is not supported")
	case 'v':
		return decodeVariant(rv)
	case 'a':
		return decodeArray(rv, elem)
	case '(':
		return decodeStruct(rv, elem)
	default:
		return nil, fmt.Errorf("busconv: unrecognized signature element %q", elem)
	}
}

func decodeVariant(rv reflect.Value) (*jsonvalue.Value, error) {
	variant, ok := rv.Interface().(dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("busconv: expected dbus.Variant, got %s", rv.Type())
	}
	innerSig := variant.Signature().String()
	innerVal := reflect.ValueOf(variant.Value())
	return DecodeElement(innerVal, innerSig)
}

func decodeArray(rv reflect.Value, elem string) (*jsonvalue.Value, error) {
	inner := elem[1:]
	if len(inner) > 0 && inner[0] == '{' {
		return decodeDict(rv, inner)
	}

	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("busconv: expected slice for %q, got %s", elem, rv.Type())
	}

	arr := jsonvalue.NewArray()
	for i := 0; i < rv.Len(); i++ {
		child, err := DecodeElement(rv.Index(i), inner)
		if err != nil {
			return nil, err
		}
		if err := arr.Append(child); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

func decodeDict(rv reflect.Value, dictEntry string) (*jsonvalue.Value, error) {
	keyElem, valElem, err := splitDictEntry(dictEntry)
	if err != nil {
		return nil, err
	}
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("busconv: expected map for dict entry %q, got %s", dictEntry, rv.Type())
	}

	obj := jsonvalue.NewObject()
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, k := range keys {
		keyStr, err := dictKeyString(k, keyElem)
		if err != nil {
			return nil, err
		}
		valJSON, err := DecodeElement(rv.MapIndex(k), valElem)
		if err != nil {
			return nil, err
		}
		if err := obj.Insert(keyStr, valJSON); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// dictKeyString renders a dict-entry key as the JSON object key text: a
// string-like key (s, o, g) is used as-is, every numeric basic-typed key is
// stringified in decimal, and a boolean key becomes "true" or "false", per
// the gateway's JSON mapping for dict keys. This exists because a JSON object key is always a string,
// regardless of the D-Bus dict's declared key type.
func dictKeyString(rv reflect.Value, keyElem string) (string, error) {
	if keyElem == "" {
		return "", fmt.Errorf("busconv: empty dict key signature")
	}
	switch keyElem[0] {
	case 's', 'o', 'g':
		if signature, ok := rv.Interface().(dbus.Signature); ok {
			return signature.String(), nil
		}
		return rv.String(), nil
	case 'b':
		return strconv.FormatBool(rv.Bool()), nil
	case 'y', 'q', 'u', 't':
		return strconv.FormatUint(rv.Uint(), 10), nil
	case 'n', 'i', 'x':
		return strconv.FormatInt(rv.Int(), 10), nil
	case 'd':
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("busconv: unsupported dict key type %q", keyElem)
	}
}

func decodeStruct(rv reflect.Value, elem string) (*jsonvalue.Value, error) {
	if len(elem) < 2 {
		return nil, fmt.Errorf("busconv: malformed struct signature %q", elem)
	}
	fieldSigs, err := sig.Split(elem[1 : len(elem)-1])
	if err != nil {
		return nil, err
	}
	if rv.Kind() != reflect.Struct || rv.NumField() != len(fieldSigs) {
		return nil, fmt.Errorf("busconv: struct/signature field count mismatch for %q", elem)
	}

	arr := jsonvalue.NewArray()
	for i, fs := range fieldSigs {
		child, err := DecodeElement(rv.Field(i), fs)
		if err != nil {
			return nil, err
		}
		if err := arr.Append(child); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

// DecodeReply converts a full method reply, keyed by the method's declared
// out-argument names, into a single JSON object. It mirrors reading the
// out-argument elements off the wire in declaration order and inserting
// each one under its argument name.
func DecodeReply(outArgs []introspect.Argument, values []reflect.Value) (*jsonvalue.Value, error) {
	if len(outArgs) != len(values) {
		return nil, fmt.Errorf("busconv: expected %d out arguments, got %d", len(outArgs), len(values))
	}

	reply := jsonvalue.NewObject()
	for i, arg := range outArgs {
		elem, err := DecodeElement(values[i], arg.Type)
		if err != nil {
			return nil, err
		}
		if err := reply.Insert(arg.Name, elem); err != nil {
			return nil, err
		}
	}
	return reply, nil
}
