package stage

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Bindings holds caller-supplied values keyed by expanded field name. A key that is present with
// a nil value binds null; an absent key is a missing value.
type Bindings map[string]any

func bindField(f model.Field, key string, bindings Bindings) (any, error) {
	raw, ok := bindings[key]
	if !ok {
		return nil, &model.BindingError{Err: model.ErrMissingValue, Field: key, Type: f.Type}
	}
	v, err := f.Type.Validate(raw)
	if err != nil {
		return nil, &model.BindingError{Err: err, Field: key, Type: f.Type}
	}
	return v, nil
}

// bindArgs reads one value per field from bindings, keyed by prefix+name, into args.
func bindArgs(args Args, fields []model.Field, prefix string, bindings Bindings) error {
	for _, f := range fields {
		v, err := bindField(f, prefix+f.Name, bindings)
		if err != nil {
			return err
		}
		args[f.Name] = v
	}
	return nil
}

// bindChunks reads the per-chunk value lists of fields and transposes them into one value set per
// chunk. Every list must hold count entries; a negative count adopts the length of the first list.
func bindChunks(fields []model.Field, prefix string, bindings Bindings, count int) ([]map[string]any, int, error) {
	columns := make([][]any, len(fields))
	for i, f := range fields {
		key := prefix + f.Name
		raw, ok := bindings[key]
		if !ok {
			return nil, count, &model.BindingError{Err: model.ErrMissingValue, Field: key, Type: f.Type}
		}

		column, err := perChunkValues(f, raw)
		if err != nil {
			return nil, count, &model.BindingError{Err: err, Field: key, Type: f.Type}
		}
		if count < 0 {
			count = len(column)
		}
		if len(column) != count {
			return nil, count, &model.BindingError{
				Err:   errors.Wrapf(model.ErrChunkMismatch, "%d values for %d chunks", len(column), count),
				Field: key,
				Type:  f.Type,
			}
		}
		columns[i] = column
	}

	if count < 0 {
		count = 0
	}
	chunks := make([]map[string]any, count)
	for c := range chunks {
		chunks[c] = make(map[string]any, len(fields))
		for i, f := range fields {
			chunks[c][f.Name] = columns[i][c]
		}
	}
	return chunks, count, nil
}

func perChunkValues(f model.Field, raw any) ([]any, error) {
	if raw == nil {
		return nil, errors.Wrap(model.ErrInvalidValue, "expected one value per chunk, got null")
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Wrapf(model.ErrInvalidValue, "expected one value per chunk, got %T", raw)
	}

	values := make([]any, rv.Len())
	for i := range values {
		v, err := f.Type.Validate(rv.Index(i).Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "chunk %d", i)
		}
		values[i] = v
	}
	return values, nil
}

// BindFlags converts repeated command-line values, keyed by expanded field name, into typed
// bindings for phase:
//   - a scalar field takes exactly one value,
//   - an array field takes one element per value, or a single JSON array,
//   - a join "split." or "out." field takes one value per chunk.
//
// Fields without any value are left unbound.
func BindFlags(stage *model.Stage, phase model.Phase, values map[string][]string) (Bindings, error) {
	fields, err := Expand(stage, phase)
	if err != nil {
		return nil, err
	}

	bindings := make(Bindings, len(fields))
	for _, f := range fields {
		raws, ok := values[f.Name]
		if !ok {
			continue
		}

		v, err := parseFlag(f, raws, PerChunk(phase, f.Name))
		if err != nil {
			return nil, &model.BindingError{Err: err, Field: f.Name, Type: f.Type}
		}
		bindings[f.Name] = v
	}
	return bindings, nil
}

func parseFlag(f model.Field, raws []string, perChunk bool) (any, error) {
	if perChunk {
		values := make([]any, len(raws))
		for i, raw := range raws {
			v, err := f.Type.Parse(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "chunk %d", i)
			}
			values[i] = v
		}
		return values, nil
	}

	arr, isArray := f.Type.(model.Array)
	if !isArray {
		if len(raws) != 1 {
			return nil, errors.Wrapf(model.ErrInvalidValue, "expected a single value, got %d", len(raws))
		}
		return f.Type.Parse(raws[0])
	}

	if len(raws) == 1 && looksLikeJSONArray(raws[0], arr) {
		return f.Type.Parse(raws[0])
	}
	values := make([]any, len(raws))
	for i, raw := range raws {
		v, err := arr.Elem.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		values[i] = v
	}
	return values, nil
}

// looksLikeJSONArray tells a whole-array value ("[1,2]") from a single element. A nested array
// is whole only when it opens with one bracket per level.
func looksLikeJSONArray(raw string, arr model.Array) bool {
	trimmed := strings.TrimSpace(raw)
	if depth := arr.Depth(); depth > 1 {
		return strings.HasPrefix(trimmed, strings.Repeat("[", depth))
	}
	return trimmed == "null" || strings.HasPrefix(trimmed, "[")
}
