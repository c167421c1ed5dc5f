package ivalue

import (
	"fmt"
	"strings"
	"unicode"
)

var builtinTypes = map[string]*Type{
	"Any":      AnyType,
	"None":     NoneType,
	"NoneType": NoneType,
	"Tensor":   TensorType,
	"int":      IntType,
	"float":    FloatType,
	"bool":     BoolType,
	"str":      StrType,
	"bytes":    BytesType,
	"Device":   DeviceType,
	"device":   DeviceType,
}

var genericArity = map[string]struct {
	kind  Kind
	arity int
}{
	"List":     {KindList, 1},
	"list":     {KindList, 1},
	"Dict":     {KindDict, 2},
	"dict":     {KindDict, 2},
	"Optional": {KindOptional, 1},
	"Tuple":    {KindTuple, -1},
	"tuple":    {KindTuple, -1},
}

// TypeSyntaxError reports a malformed annotation.
type TypeSyntaxError struct {
	Input  string
	Offset int
	Reason string
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("ivalue: invalid type %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

// ParseType parses an annotation such as "Dict[str, List[Tensor]]". Names
// that are not builtin are treated as qualified class names.
func ParseType(input string) (*Type, error) {
	p := &typeParser{input: input}
	p.skipSpace()
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.fail("unexpected trailing input")
	}
	return t, nil
}

// MustParseType is ParseType for package-level declarations and tests.
func MustParseType(input string) *Type {
	t, err := ParseType(input)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) parse() (*Type, error) {
	name := p.ident()
	if name == "" {
		return nil, p.fail("expected type name")
	}
	p.skipSpace()
	if !p.consume('[') {
		if t, ok := builtinTypes[name]; ok {
			return t, nil
		}
		if _, ok := genericArity[name]; ok {
			return &Type{Kind: genericArity[name].kind, Elems: defaultElems(genericArity[name].arity)}, nil
		}
		return ClassOf(QualifiedName(name)), nil
	}

	generic, ok := genericArity[name]
	if !ok {
		return nil, p.fail(fmt.Sprintf("%s does not take parameters", name))
	}
	var elems []*Type
	for {
		p.skipSpace()
		if generic.kind == KindTuple && len(elems) == 0 && p.consume(']') {
			return &Type{Kind: KindTuple}, nil
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			break
		}
		return nil, p.fail("expected ',' or ']'")
	}
	if generic.arity >= 0 && len(elems) != generic.arity {
		return nil, p.fail(fmt.Sprintf("%s expects %d parameters, got %d", name, generic.arity, len(elems)))
	}
	return &Type{Kind: generic.kind, Elems: elems}, nil
}

func defaultElems(arity int) []*Type {
	if arity <= 0 {
		return nil
	}
	elems := make([]*Type, arity)
	for i := range elems {
		elems[i] = AnyType
	}
	return elems
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.input) {
		r := rune(p.input[p.pos])
		if r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			p.pos++
			continue
		}
		break
	}
	return strings.Trim(p.input[start:p.pos], ".")
}

func (p *typeParser) consume(b byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) fail(reason string) error {
	return &TypeSyntaxError{Input: p.input, Offset: p.pos, Reason: reason}
}
