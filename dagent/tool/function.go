package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/package-register/deepagent-go/dagent/model"
)

// Handler is a typed tool implementation: Req is decoded from the model's
// call arguments, Rsp is marshaled back as the tool message content.
//
// This mirrors the teacher's `tools/extra_tools.go` pattern of a Go struct
// with `json`+`jsonschema` tags per field (deleteFileRequest,
// fileStatResponse, ...), generalized here into one reusable builder
// instead of one handwritten tool per operation.
type Handler[Req, Rsp any] func(ctx context.Context, req *Req) (*Rsp, error)

// FunctionTool adapts a typed Handler to the Tool interface, deriving its
// JSON-schema parameter declaration from Req's struct tags via reflection.
type FunctionTool[Req, Rsp any] struct {
	name        string
	description string
	handler     Handler[Req, Rsp]
	schema      map[string]any
}

// NewFunctionTool builds a Tool from a typed handler. name and description
// are required; Req's exported fields become the schema's properties,
// `json` tags set property names and `jsonschema:"description=..."` tags
// set property descriptions.
func NewFunctionTool[Req, Rsp any](name, description string, h Handler[Req, Rsp]) *FunctionTool[Req, Rsp] {
	var zero Req
	return &FunctionTool[Req, Rsp]{
		name:        name,
		description: description,
		handler:     h,
		schema:      schemaOf(reflect.TypeOf(zero)),
	}
}

func (t *FunctionTool[Req, Rsp]) Name() string        { return t.name }
func (t *FunctionTool[Req, Rsp]) Description() string { return t.description }

func (t *FunctionTool[Req, Rsp]) Declaration() model.ToolDeclaration {
	return model.ToolDeclaration{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.schema,
	}
}

func (t *FunctionTool[Req, Rsp]) Call(ctx context.Context, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("tool %s: marshal arguments: %w", t.name, err)
	}
	var req Req
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", fmt.Errorf("tool %s: decode arguments: %w", t.name, err)
	}
	rsp, err := t.handler(ctx, &req)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(rsp)
	if err != nil {
		return "", fmt.Errorf("tool %s: marshal response: %w", t.name, err)
	}
	return string(out), nil
}

// schemaOf builds a minimal JSON Schema object ({"type":"object",
// "properties": {...}, "required": [...]}) from a struct type's json and
// jsonschema tags. Unexported fields and fields tagged `json:"-"` are
// skipped.
func schemaOf(t reflect.Type) map[string]any {
	props := map[string]any{}
	var required []string

	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": props}
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		jsonTag := f.Tag.Get("json")
		name := f.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitempty = true
				}
			}
		}

		prop := map[string]any{"type": jsonType(f.Type)}
		if desc := schemaDescription(f.Tag.Get("jsonschema")); desc != "" {
			prop["description"] = desc
		}
		props[name] = prop

		if !omitempty {
			required = append(required, name)
		}
	}

	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// schemaDescription parses the `description=...` key out of a
// jsonschema struct tag, the convention used throughout
// tools/extra_tools.go.
func schemaDescription(tag string) string {
	for _, part := range strings.Split(tag, ",") {
		if v, ok := strings.CutPrefix(part, "description="); ok {
			return v
		}
	}
	return ""
}
