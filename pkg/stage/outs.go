package stage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Args maps field names to bound values.
type Args map[string]any

// Outs maps output names to values. Implementations fill it in place.
type Outs map[string]any

// DefaultFileName is the file an output of a file type is expected at, e.g. "alignments.bam".
func DefaultFileName(f model.Field) string {
	return f.Name + "." + f.Type.Base().String()
}

// BuildOuts initialises an outs container: file-typed outputs get their default file name,
// every other output starts nil.
func BuildOuts(outputs []model.Field) Outs {
	outs := make(Outs, len(outputs))
	for _, f := range outputs {
		if f.Type.IsFile() {
			outs[f.Name] = DefaultFileName(f)
			continue
		}
		outs[f.Name] = nil
	}
	return outs
}

// WriteOuts persists every non-file output of outs as JSON to a file named after the field in
// dir. File-typed outputs are left to the implementation. It returns the written paths.
func WriteOuts(dir string, outputs []model.Field, outs Outs) ([]string, error) {
	var written []string
	for _, f := range outputs {
		if f.Type.IsFile() {
			continue
		}

		path := filepath.Join(dir, f.Name)
		data, err := json.Marshal(outs[f.Name])
		if err != nil {
			return written, &PersistenceError{Path: path, Err: errors.Wrapf(err, "unable to encode output %s", f.Name)}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // outputs are shared with downstream stages
			return written, &PersistenceError{Path: path, Err: err}
		}
		written = append(written, path)
	}
	return written, nil
}

// OutputFiles lists the output files present in dir after a phase: the JSON files written by
// WriteOuts and the files named by file-typed outputs.
func OutputFiles(dir string, outputs []model.Field, outs Outs) []string {
	var paths []string
	add := func(name string) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, name)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			paths = append(paths, path)
		}
	}

	for _, f := range outputs {
		if !f.Type.IsFile() {
			add(f.Name)
			continue
		}
		for _, name := range fileNames(outs[f.Name]) {
			add(name)
		}
	}
	return paths
}

// ResolveFiles returns a copy of outs in which every relative file name held by a file-typed
// output, array elements included, is joined to dir. Other values are kept as they are.
func ResolveFiles(dir string, outputs []model.Field, outs Outs) Outs {
	if outs == nil {
		return nil
	}
	resolved := make(Outs, len(outs))
	for k, v := range outs {
		resolved[k] = v
	}
	for _, f := range outputs {
		if f.Type.IsFile() {
			resolved[f.Name] = resolveFile(dir, outs[f.Name])
		}
	}
	return resolved
}

func resolveFile(dir string, v any) any {
	switch val := v.(type) {
	case string:
		if val == "" || filepath.IsAbs(val) {
			return val
		}
		return filepath.Join(dir, val)
	case []string:
		paths := make([]any, len(val))
		for i, elem := range val {
			paths[i] = resolveFile(dir, elem)
		}
		return paths
	case []any:
		paths := make([]any, len(val))
		for i, elem := range val {
			paths[i] = resolveFile(dir, elem)
		}
		return paths
	}
	return v
}

// fileNames collects the strings of a file-typed output value, flattening arrays.
func fileNames(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		var names []string
		for _, elem := range val {
			names = append(names, fileNames(elem)...)
		}
		return names
	}
	return nil
}
