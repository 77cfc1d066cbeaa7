package busconv

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/godbus/dbus"

	"github.com/afreof/dbus-http/internal/introspect"
	"github.com/afreof/dbus-http/internal/jsonvalue"
	"github.com/afreof/dbus-http/internal/sig"
)

// EncodeElement converts a JSON value into a reflect.Value of the type
// GoType(elem) describes, ready to pass to godbus as a method call argument.
func EncodeElement(jv *jsonvalue.Value, elem string) (reflect.Value, error) {
	if elem == "" {
		return reflect.Value{}, fmt.Errorf("busconv: empty signature element")
	}

	switch elem[0] {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd':
		return encodeNumber(jv, elem[0])
	case 's', 'o', 'g':
		return encodeString(jv, elem[0])
	case 'h':
		return reflect.Value{}, fmt.Errorf("busconv: unix fd type is not supported")
	case 'v':
		return encodeVariant(jv)
	case 'a':
		return encodeArray(jv, elem)
	case '(':
		return encodeStruct(jv, elem)
	default:
		return reflect.Value{}, fmt.Errorf("busconv: unrecognized signature element %q", elem)
	}
}

func encodeNumber(jv *jsonvalue.Value, typeChar byte) (reflect.Value, error) {
	if typeChar == 'b' {
		switch jv.Kind() {
		case jsonvalue.True:
			return reflect.ValueOf(true), nil
		case jsonvalue.False:
			return reflect.ValueOf(false), nil
		default:
			return reflect.Value{}, fmt.Errorf("busconv: expected JSON boolean for 'b'")
		}
	}

	if jv.Kind() != jsonvalue.Number {
		return reflect.Value{}, fmt.Errorf("busconv: expected JSON number for %q", string(typeChar))
	}
	n := jv.Number()

	switch typeChar {
	case 'y':
		return reflect.ValueOf(byte(n)), nil
	case 'n':
		return reflect.ValueOf(int16(n)), nil
	case 'q':
		return reflect.ValueOf(uint16(n)), nil
	case 'i':
		return reflect.ValueOf(int32(n)), nil
	case 'u':
		return reflect.ValueOf(uint32(n)), nil
	case 'x':
		return reflect.ValueOf(int64(n)), nil
	case 't':
		return reflect.ValueOf(uint64(n)), nil
	case 'd':
		return reflect.ValueOf(n), nil
	default:
		return reflect.Value{}, fmt.Errorf("busconv: not a number type %q", string(typeChar))
	}
}

func encodeString(jv *jsonvalue.Value, typeChar byte) (reflect.Value, error) {
	if jv.Kind() != jsonvalue.String {
		return reflect.Value{}, fmt.Errorf("busconv: expected JSON string for %q", string(typeChar))
	}
	switch typeChar {
	case 'o':
		return reflect.ValueOf(dbus.ObjectPath(jv.String())), nil
	case 'g':
		parsed, err := dbus.ParseSignature(jv.String())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("busconv: invalid signature string: %w", err)
		}
		return reflect.ValueOf(parsed), nil
	default:
		return reflect.ValueOf(jv.String()), nil
	}
}

func encodeArray(jv *jsonvalue.Value, elem string) (reflect.Value, error) {
	inner := elem[1:]
	if len(inner) > 0 && inner[0] == '{' {
		return encodeDict(jv, inner)
	}

	elemType, err := GoType(inner)
	if err != nil {
		return reflect.Value{}, err
	}

	switch jv.Kind() {
	case jsonvalue.Array:
		out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, jv.Len())
		for i := 0; i < jv.Len(); i++ {
			child, _ := jv.Index(i, 0, false)
			cv, err := EncodeElement(child, inner)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, cv)
		}
		return out, nil
	case jsonvalue.Object:
		// A bare JSON object standing in for an array is tolerated, the
		// same way the reference encoder accepts an object wherever it
		// expects a homogeneous array-of-one convention.
		out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, 1)
		cv, err := EncodeElement(jv, inner)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, cv)
		return out, nil
	default:
		return reflect.Value{}, fmt.Errorf("busconv: expected JSON array for %q", elem)
	}
}

func encodeDict(jv *jsonvalue.Value, dictEntry string) (reflect.Value, error) {
	keyElem, valElem, err := splitDictEntry(dictEntry)
	if err != nil {
		return reflect.Value{}, err
	}
	if jv.Kind() != jsonvalue.Object {
		return reflect.Value{}, fmt.Errorf("busconv: expected JSON object for dict entry %q", dictEntry)
	}

	keyType, err := GoType(keyElem)
	if err != nil {
		return reflect.Value{}, err
	}
	valType, err := GoType(valElem)
	if err != nil {
		return reflect.Value{}, err
	}

	m := reflect.MakeMap(reflect.MapOf(keyType, valType))
	for _, e := range jv.Entries() {
		keyVal, err := encodeDictKey(e.Key, keyElem)
		if err != nil {
			return reflect.Value{}, err
		}
		valVal, err := EncodeElement(e.Value, valElem)
		if err != nil {
			return reflect.Value{}, err
		}
		m.SetMapIndex(keyVal, valVal)
	}
	return m, nil
}

// encodeDictKey parses a JSON object key's text back into the dict's
// declared key type: string-like keys pass through unchanged, every numeric
// basic-typed key is parsed from the decimal text DecodeElement produces for
// it, and a boolean key is parsed from "true"/"false". This is the inverse of dictKeyString in
// reader.go, so a decoded-then-re-encoded dict round-trips through its
// declared key type rather than being coerced to a D-Bus string.
func encodeDictKey(keyText string, keyElem string) (reflect.Value, error) {
	if keyElem == "" {
		return reflect.Value{}, fmt.Errorf("busconv: empty dict key signature")
	}
	switch keyElem[0] {
	case 's', 'o', 'g':
		return encodeString(jsonvalue.NewString(keyText), keyElem[0])
	case 'b':
		b, err := strconv.ParseBool(keyText)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("busconv: invalid dict key %q for type 'b': %w", keyText, err)
		}
		return reflect.ValueOf(b), nil
	case 'y', 'q', 'u', 't', 'n', 'i', 'x':
		n, err := strconv.ParseFloat(keyText, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("busconv: invalid dict key %q for type %q: %w", keyText, string(keyElem[0]), err)
		}
		return encodeNumber(jsonvalue.NewNumber(n), keyElem[0])
	case 'd':
		n, err := strconv.ParseFloat(keyText, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("busconv: invalid dict key %q for type 'd': %w", keyText, err)
		}
		return reflect.ValueOf(n), nil
	default:
		return reflect.Value{}, fmt.Errorf("busconv: unsupported dict key type %q", keyElem)
	}
}

func encodeStruct(jv *jsonvalue.Value, elem string) (reflect.Value, error) {
	if jv.Kind() != jsonvalue.Array {
		return reflect.Value{}, fmt.Errorf("busconv: expected JSON array for struct %q", elem)
	}
	fieldSigs, err := sig.Split(elem[1 : len(elem)-1])
	if err != nil {
		return reflect.Value{}, err
	}
	if jv.Len() != len(fieldSigs) {
		return reflect.Value{}, fmt.Errorf("busconv: struct %q expects %d elements, got %d", elem, len(fieldSigs), jv.Len())
	}

	structType, err := GoType(elem)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(structType).Elem()
	for i, fs := range fieldSigs {
		child, _ := jv.Index(i, 0, false)
		fv, err := EncodeElement(child, fs)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(fv)
	}
	return out, nil
}

// encodeVariant builds a dbus.Variant from JSON. Because plain JSON cannot
// carry a D-Bus signature, the expected input shape is an object of the
// form {"dbus_variant_sign": "<sig>", "data": <value>}; a bare JSON string
// or boolean is inferred as variant<s> / variant<b> for convenience, and
// any other bare scalar is rejected since its D-Bus type is ambiguous.
func encodeVariant(jv *jsonvalue.Value) (reflect.Value, error) {
	variantSig := ""
	data := jv

	switch jv.Kind() {
	case jsonvalue.Object:
		if signJSON, ok := jv.Lookup("dbus_variant_sign", jsonvalue.String, true); ok {
			variantSig = signJSON.String()
			if dataJSON, ok := jv.Lookup("data", 0, false); ok {
				data = dataJSON
			}
		}
	case jsonvalue.String:
		variantSig = "s"
	case jsonvalue.True, jsonvalue.False:
		variantSig = "b"
	default:
		return reflect.Value{}, fmt.Errorf("busconv: variant requires an explicit dbus_variant_sign for this JSON shape")
	}

	if variantSig == "" {
		return reflect.Value{}, fmt.Errorf("busconv: empty variant signature")
	}

	inner, err := EncodeElement(data, variantSig)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(dbus.MakeVariant(inner.Interface())), nil
}

// EncodeArgs builds the positional call arguments for a method invocation
// from a JSON array, enforcing the same strict arity check the reference
// writer applies: the JSON array must have exactly as many elements as the
// method declares in-arguments.
func EncodeArgs(inArgs []introspect.Argument, args *jsonvalue.Value) ([]interface{}, error) {
	if args.Kind() != jsonvalue.Array {
		return nil, fmt.Errorf("busconv: arguments must be a JSON array")
	}
	if args.Len() != len(inArgs) {
		return nil, fmt.Errorf("busconv: method expects %d arguments, got %d", len(inArgs), args.Len())
	}

	out := make([]interface{}, len(inArgs))
	for i, arg := range inArgs {
		elemJSON, _ := args.Index(i, 0, false)
		v, err := EncodeElement(elemJSON, arg.Type)
		if err != nil {
			return nil, err
		}
		out[i] = v.Interface()
	}
	return out, nil
}
