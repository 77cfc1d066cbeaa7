// Package introspect builds a gateway-native introspection tree from a
// D-Bus Introspectable.Introspect XML document, and provides method
// lookup over that tree. Parsing is a hand-rolled element/attribute state
// machine rather than a generic XML-to-struct decoder, so that malformed
// or partial elements are tolerated the same way the reference introspector
// tolerates them: an unrecognized or incomplete element simply fails to
// advance the state machine instead of aborting the parse.
package introspect

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Argument is one <arg> of a method.
type Argument struct {
	Name      string
	Type      string
	Direction string // "in" or "out"
}

// Method is one <method> of an interface.
type Method struct {
	Name    string
	InArgs  []Argument
	OutArgs []Argument
}

// Property is one <property> of an interface.
type Property struct {
	Name     string
	Type     string
	Writable bool
}

// Interface is one <interface> of a node.
type Interface struct {
	Name       string
	Methods    []Method
	Properties []Property
}

// Node is the root of a parsed introspection document.
type Node struct {
	Interfaces []Interface
}

// FindMethod looks up a method by interface and method name.
func (n *Node) FindMethod(interfaceName, methodName string) (*Method, bool) {
	for i := range n.Interfaces {
		if n.Interfaces[i].Name != interfaceName {
			continue
		}
		for j := range n.Interfaces[i].Methods {
			if n.Interfaces[i].Methods[j].Name == methodName {
				return &n.Interfaces[i].Methods[j], true
			}
		}
		return nil, false
	}
	return nil, false
}

// ErrMalformed is returned when the XML document itself cannot be tokenized.
var ErrMalformed = errors.New("introspect: malformed xml document")

type level int

const (
	levelRoot level = iota
	levelNode
	levelInterface
	levelMethod
	levelArgument
	levelProperty
)

// Parse builds a Node from an Introspect XML document. Elements the state
// machine does not expect at the current level are ignored rather than
// rejected, matching the reference parser's tolerance for extra or unknown
// elements (such as <signal> or <annotation>, which this gateway does not
// surface but which a real bus's introspection XML commonly includes).
func Parse(xmlDoc string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlDoc))
	node := &Node{}
	lvl := levelRoot

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			lvl = handleStart(node, lvl, t)
		case xml.EndElement:
			lvl = handleEnd(node, lvl, t.Name.Local)
		}
	}

	if len(node.Interfaces) == 0 {
		return node, nil
	}
	return node, nil
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func handleStart(node *Node, lvl level, t xml.StartElement) level {
	name := t.Name.Local

	switch lvl {
	case levelRoot:
		if name == "node" {
			return levelNode
		}

	case levelNode:
		if name == "interface" {
			if ifaceName, ok := attr(t, "name"); ok {
				node.Interfaces = append(node.Interfaces, Interface{Name: ifaceName})
				return levelInterface
			}
		}

	case levelInterface:
		iface := &node.Interfaces[len(node.Interfaces)-1]
		switch name {
		case "method":
			if methodName, ok := attr(t, "name"); ok {
				iface.Methods = append(iface.Methods, Method{Name: methodName})
				return levelMethod
			}
		case "property":
			propName, hasName := attr(t, "name")
			propType, hasType := attr(t, "type")
			access, hasAccess := attr(t, "access")
			if hasName && hasType && hasAccess {
				iface.Properties = append(iface.Properties, Property{
					Name:     propName,
					Type:     propType,
					Writable: access == "readwrite",
				})
				return levelProperty
			}
		}

	case levelMethod:
		if name == "arg" {
			iface := &node.Interfaces[len(node.Interfaces)-1]
			method := &iface.Methods[len(iface.Methods)-1]

			argName, _ := attr(t, "name")
			argType, hasType := attr(t, "type")
			direction, hasDirection := attr(t, "direction")
			if !hasDirection {
				direction = "in"
			}

			if hasType {
				if argName == "" {
					if direction == "in" {
						argName = syntheticArgName(len(method.InArgs))
					} else {
						argName = syntheticArgName(len(method.OutArgs))
					}
				}
				a := Argument{Name: argName, Type: argType, Direction: direction}
				if direction == "in" {
					method.InArgs = append(method.InArgs, a)
				} else {
					method.OutArgs = append(method.OutArgs, a)
				}
				return levelArgument
			}
		}
	}

	return lvl
}

func handleEnd(node *Node, lvl level, name string) level {
	switch lvl {
	case levelNode:
		if name == "node" {
			return levelRoot
		}
	case levelInterface:
		if name == "interface" {
			return levelNode
		}
	case levelMethod:
		if name == "method" {
			return levelInterface
		}
	case levelArgument:
		if name == "arg" {
			return levelMethod
		}
	case levelProperty:
		if name == "property" {
			return levelInterface
		}
	}
	return lvl
}

func syntheticArgName(index int) string {
	return "arg" + strconv.Itoa(index)
}
