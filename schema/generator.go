// Package schema describes loaded class types as an OpenAPI 3.1 document
// whose component schemas are JSON Schema.
package schema

import (
	"fmt"

	"github.com/goliatone/go-scriptload/ivalue"
)

const (
	tensorComponent = "Tensor"
	refPrefix       = "#/components/schemas/"
)

type generatorConfig struct {
	openAPIVersion string
	title          string
	version        string
	description    string
}

// Option configures Describe.
type Option func(*generatorConfig)

// WithTitle overrides the info title.
func WithTitle(title string) Option {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.title = title
		}
	}
}

// WithVersion overrides the info version.
func WithVersion(version string) Option {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.version = version
		}
	}
}

// WithDescription sets the info description.
func WithDescription(description string) Option {
	return func(cfg *generatorConfig) {
		cfg.description = description
	}
}

// Describe builds a document whose root schema is cls. Classes referenced
// by attributes are looked up in cu and described as components too; those
// not defined in cu are left as bare objects.
func Describe(cu *ivalue.CompilationUnit, cls *ivalue.ClassType, opts ...Option) (map[string]any, error) {
	if cls == nil {
		return nil, fmt.Errorf("schema: class cannot be nil")
	}
	cfg := generatorConfig{
		openAPIVersion: "3.1.0",
		title:          string(cls.Name),
		version:        "1.0.0",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	g := &generator{cu: cu, registry: newComponentRegistry()}
	root := g.classRef(cls)

	info := map[string]any{
		"title":   cfg.title,
		"version": cfg.version,
	}
	if cfg.description != "" {
		info["description"] = cfg.description
	}
	document := map[string]any{
		"openapi": cfg.openAPIVersion,
		"info":    info,
		"paths":   map[string]any{},
		"x-root":  root,
	}
	if components := g.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	return document, nil
}

type generator struct {
	cu       *ivalue.CompilationUnit
	registry *componentRegistry
}

func (g *generator) classRef(cls *ivalue.ClassType) map[string]any {
	name, fresh := g.registry.reference(string(cls.Name), string(cls.Name))
	if fresh {
		g.registry.define(name, g.classSchema(cls))
	}
	return map[string]any{"$ref": refPrefix + name}
}

func (g *generator) classSchema(cls *ivalue.ClassType) map[string]any {
	properties := map[string]any{}
	required := []string{}
	order := make([]string, 0, cls.NumAttributes())
	for _, attr := range cls.Attributes() {
		properties[attr.Name] = g.typeSchema(attr.Type)
		order = append(order, attr.Name)
		if !attr.Type.IsOptional() {
			required = append(required, attr.Name)
		}
	}
	strategy := "direct_map"
	if cls.HasStateCapability() {
		strategy = "replay"
	}
	out := map[string]any{
		"type":                 "object",
		"title":                string(cls.Name),
		"properties":           properties,
		"additionalProperties": false,
		"x-attribute-order":    order,
		"x-strategy":           strategy,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if methods := cls.MethodNames(); len(methods) > 0 {
		described := make([]any, 0, len(methods))
		for _, name := range methods {
			method, _ := cls.Method(name)
			entry := map[string]any{"name": name, "engine": method.Engine}
			if method.Param != nil {
				entry["param"] = method.Param.String()
			}
			if method.Returns != nil {
				entry["returns"] = method.Returns.String()
			}
			described = append(described, entry)
		}
		out["x-methods"] = described
	}
	return out
}

func (g *generator) typeSchema(t *ivalue.Type) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	switch t.Kind {
	case ivalue.KindNone:
		return map[string]any{"type": "null"}
	case ivalue.KindInt:
		return map[string]any{"type": "integer", "format": "int64"}
	case ivalue.KindFloat:
		return map[string]any{"type": "number", "format": "double"}
	case ivalue.KindBool:
		return map[string]any{"type": "boolean"}
	case ivalue.KindStr:
		return map[string]any{"type": "string"}
	case ivalue.KindBytes:
		return map[string]any{"type": "string", "contentEncoding": "base64"}
	case ivalue.KindDevice:
		return map[string]any{"type": "string", "format": "device"}
	case ivalue.KindTensor:
		return g.tensorRef()
	case ivalue.KindList:
		return map[string]any{"type": "array", "items": g.typeSchema(t.Elem(0))}
	case ivalue.KindTuple:
		items := make([]any, len(t.Elems))
		for i, elem := range t.Elems {
			items[i] = g.typeSchema(elem)
		}
		return map[string]any{
			"type":        "array",
			"prefixItems": items,
			"minItems":    len(items),
			"maxItems":    len(items),
		}
	case ivalue.KindDict:
		out := map[string]any{"type": "object", "additionalProperties": g.typeSchema(t.Elem(1))}
		if key := t.Elem(0); key.Kind != ivalue.KindStr && key.Kind != ivalue.KindAny {
			out["x-key-type"] = key.String()
		}
		return out
	case ivalue.KindOptional:
		return map[string]any{"anyOf": []any{g.typeSchema(t.Elem(0)), map[string]any{"type": "null"}}}
	case ivalue.KindClass:
		if g.cu != nil {
			if cls, ok := g.cu.Class(ivalue.QualifiedName(t.Name)); ok {
				return g.classRef(cls)
			}
		}
		return map[string]any{"type": "object", "title": t.Name}
	default:
		return map[string]any{}
	}
}

func (g *generator) tensorRef() map[string]any {
	name, fresh := g.registry.reference("\x00tensor", tensorComponent)
	if fresh {
		g.registry.define(name, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dtype":  map[string]any{"type": "string"},
				"shape":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
				"device": map[string]any{"type": "string", "format": "device"},
			},
			"required": []string{"dtype", "shape"},
		})
	}
	return map[string]any{"$ref": refPrefix + name}
}
