// Package busconv translates between the gateway's JSON value model and
// D-Bus wire values. Because the signature of a method argument is only
// known at request time, Go types for D-Bus structs are constructed
// dynamically with reflect.StructOf (and dict-entry arrays with
// reflect.MapOf); godbus derives wire
// signatures from reflect.Type regardless of whether that type was
// declared statically or built at runtime, so the dynamically built types
// round-trip through godbus's encoder/decoder exactly like hand-written
// ones would.
package busconv

import (
	"fmt"
	"reflect"

	"github.com/godbus/dbus"

	"github.com/afreof/dbus-http/internal/sig"
)

var (
	byteType   = reflect.TypeOf(byte(0))
	boolType   = reflect.TypeOf(false)
	int16Type  = reflect.TypeOf(int16(0))
	uint16Type = reflect.TypeOf(uint16(0))
	int32Type  = reflect.TypeOf(int32(0))
	uint32Type = reflect.TypeOf(uint32(0))
	int64Type  = reflect.TypeOf(int64(0))
	uint64Type = reflect.TypeOf(uint64(0))
	floatType  = reflect.TypeOf(float64(0))
	stringType = reflect.TypeOf("")
	pathType   = reflect.TypeOf(dbus.ObjectPath(""))
	sigType    = reflect.TypeOf(dbus.Signature{})
	variantType = reflect.TypeOf(dbus.Variant{})
)

// GoType returns the reflect.Type used to decode or encode a single
// complete D-Bus type signature element.
func GoType(elem string) (reflect.Type, error) {
	if elem == "" {
		return nil, fmt.Errorf("busconv: empty signature element")
	}

	switch elem[0] {
	case 'y':
		return byteType, nil
	case 'b':
		return boolType, nil
	case 'n':
		return int16Type, nil
	case 'q':
		return uint16Type, nil
	case 'i':
		return int32Type, nil
	case 'u':
		return uint32Type, nil
	case 'x':
		return int64Type, nil
	case 't':
		return uint64Type, nil
	case 'd':
		return floatType, nil
	case 's':
		return stringType, nil
	case 'o':
		return pathType, nil
	case 'g':
		return sigType, nil
	case 'v':
		return variantType, nil
	case 'h':
		return nil, fmt.Errorf("busconv: unix fd type is not supported")
	case 'a':
		return arrayGoType(elem)
	case '(':
		return structGoType(elem)
	default:
		return nil, fmt.Errorf("busconv: unrecognized signature element %q", elem)
	}
}

func arrayGoType(elem string) (reflect.Type, error) {
	inner := elem[1:]
	if len(inner) > 0 && inner[0] == '{' {
		keyElem, valElem, err := splitDictEntry(inner)
		if err != nil {
			return nil, err
		}
		keyType, err := GoType(keyElem)
		if err != nil {
			return nil, err
		}
		valType, err := GoType(valElem)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(keyType, valType), nil
	}

	elemType, err := GoType(inner)
	if err != nil {
		return nil, err
	}
	return reflect.SliceOf(elemType), nil
}

// splitDictEntry strips the enclosing "{" and "}" from a dict-entry body
// (e.g. "{sv}") and returns the key and value signature elements.
func splitDictEntry(dictEntry string) (key, val string, err error) {
	if len(dictEntry) < 2 || dictEntry[0] != '{' || dictEntry[len(dictEntry)-1] != '}' {
		return "", "", fmt.Errorf("busconv: malformed dict-entry %q", dictEntry)
	}
	body := dictEntry[1 : len(dictEntry)-1]
	keyLen, err := sig.ElementLength(body)
	if err != nil {
		return "", "", err
	}
	return body[:keyLen], body[keyLen:], nil
}

func structGoType(elem string) (reflect.Type, error) {
	if len(elem) < 2 || elem[0] != '(' || elem[len(elem)-1] != ')' {
		return nil, fmt.Errorf("busconv: malformed struct signature %q", elem)
	}
	fieldSigs, err := sig.Split(elem[1 : len(elem)-1])
	if err != nil {
		return nil, err
	}

	fields := make([]reflect.StructField, len(fieldSigs))
	for i, fs := range fieldSigs {
		ft, err := GoType(fs)
		if err != nil {
			return nil, err
		}
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("Field%d", i),
			Type: ft,
		}
	}
	return reflect.StructOf(fields), nil
}
