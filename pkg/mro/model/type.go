package model

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxArrayDepth is the deepest array nesting the language accepts ("string[][]").
const MaxArrayDepth = 2

// FileTypes is the closed file-type vocabulary.
var FileTypes = []string{
	"bam", "bam.bai", "bed", "cloupe", "csv", "fasta",
	"fasta.fai", "fastq", "gtf", "h5", "html", "json",
	"pickle", "sam", "script", "tsv", "vloupe",
}

// Type is one member of the MRO type vocabulary.
//
// The set of implementations is closed: Scalar, File and Array.
type Type interface {
	// String returns the type as spelled in MRO source, e.g. "int[]".
	String() string
	// Base strips every array marker.
	Base() Type
	// IsFile reports whether the base type is a file type.
	IsFile() bool
	// Parse converts one textual value, as typed on a command line.
	Parse(raw string) (any, error)
	// Validate normalises a decoded Go value to the canonical representation of the type.
	Validate(v any) (any, error)

	sealed()
}

// ScalarKind enumerates the scalar types.
type ScalarKind string

const (
	Bool   ScalarKind = "bool"
	Int    ScalarKind = "int"
	Float  ScalarKind = "float"
	String ScalarKind = "string"
	Path   ScalarKind = "path"
	Map    ScalarKind = "map"
)

var scalarKinds = map[string]ScalarKind{
	"bool": Bool, "int": Int, "float": Float, "string": String, "path": Path, "map": Map,
}

// Scalar is a non-file, non-array type.
type Scalar struct {
	Kind ScalarKind
}

// File is a type from FileTypes. Values are file names.
type File struct {
	Ext string
}

// Array wraps an element type.
type Array struct {
	Elem Type
}

// IsFileType reports whether name belongs to the file-type vocabulary.
func IsFileType(name string) bool {
	for _, ft := range FileTypes {
		if ft == name {
			return true
		}
	}
	return false
}

// ParseType resolves a type token such as "bam", "int[]" or "string[][]".
func ParseType(token string) (Type, error) {
	base := token
	depth := 0
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
		depth++
	}
	if depth > MaxArrayDepth {
		return nil, errors.Wrapf(ErrUnknownType, "%q nests arrays deeper than %d", token, MaxArrayDepth)
	}

	var typ Type
	if kind, ok := scalarKinds[base]; ok {
		typ = Scalar{Kind: kind}
	} else if IsFileType(base) {
		typ = File{Ext: base}
	} else {
		return nil, errors.Wrapf(ErrUnknownType, "%q", token)
	}

	for i := 0; i < depth; i++ {
		typ = Array{Elem: typ}
	}

	return typ, nil
}

func (s Scalar) String() string { return string(s.Kind) }
func (s Scalar) Base() Type     { return s }
func (Scalar) IsFile() bool     { return false }
func (Scalar) sealed()          {}

func (s Scalar) Parse(raw string) (any, error) {
	if raw == "null" && s.Kind != String && s.Kind != Path {
		return nil, nil
	}

	switch s.Kind {
	case Bool:
		return parseBool(raw)
	case Int:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not an int", raw)
		}
		return i, nil
	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a float", raw)
		}
		return f, nil
	case String:
		return raw, nil
	case Path:
		return stripQuotes(raw), nil
	case Map:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a JSON object", raw)
		}
		return s.Validate(v)
	}

	return nil, errors.Wrapf(ErrUnknownType, "%q", s.Kind)
}

func (s Scalar) Validate(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch s.Kind {
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Int:
		if i, ok := toInt(v); ok {
			return i, nil
		}
	case Float:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case String, Path:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case Map:
		if m, ok := toMap(v); ok {
			return m, nil
		}
	}

	return nil, errors.Wrapf(ErrInvalidValue, "%T is not a %s", v, s.Kind)
}

func (f File) String() string { return f.Ext }
func (f File) Base() Type     { return f }
func (File) IsFile() bool     { return true }
func (File) sealed()          {}

func (File) Parse(raw string) (any, error) { return raw, nil }

func (f File) Validate(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return nil, errors.Wrapf(ErrInvalidValue, "%T is not a %s file name", v, f.Ext)
}

func (a Array) String() string { return a.Elem.String() + "[]" }
func (a Array) Base() Type     { return a.Elem.Base() }
func (a Array) IsFile() bool   { return a.Elem.IsFile() }
func (Array) sealed()          {}

// Depth returns the number of array markers.
func (a Array) Depth() int {
	if inner, ok := a.Elem.(Array); ok {
		return inner.Depth() + 1
	}
	return 1
}

func (a Array) Parse(raw string) (any, error) {
	if raw == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%q is not a JSON array", raw)
	}
	return a.Validate(v)
}

func (a Array) Validate(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Wrapf(ErrInvalidValue, "%T is not a %s", v, a)
	}

	out := make([]any, rv.Len())
	for i := range out {
		elem, err := a.Elem.Validate(rv.Index(i).Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		out[i] = elem
	}

	return out, nil
}

func parseBool(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "t", "y", "1":
		return true, nil
	case "no", "false", "f", "n", "0":
		return false, nil
	}
	return nil, errors.Wrapf(ErrInvalidValue, "%q is not a bool", raw)
}

// stripQuotes removes one leading and one trailing quote character.
func stripQuotes(raw string) string {
	if raw != "" && (raw[0] == '"' || raw[0] == '\'') {
		raw = raw[1:]
	}
	if n := len(raw); n > 0 && (raw[n-1] == '"' || raw[n-1] == '\'') {
		raw = raw[:n-1]
	}
	return raw
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
