package parser

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Result is the normalised content of one MRO file.
type Result struct {
	File      string
	Includes  []string
	FileTypes []string
	Stages    []*model.Stage
	Pipeline  *model.Pipeline
}

// Normalize turns a raw entry into a Field:
//   - (modifier, type, name, help) is taken verbatim,
//   - (modifier, type, name) gets a nil help,
//   - (modifier, type) reuses the type token as the name, gets a nil help and the default tag.
//
// For src entries the name slot holds the source path and Type is nil.
func Normalize(entry RawEntry) (model.Field, error) {
	if len(entry.Parts) < 2 || len(entry.Parts) > 4 {
		return model.Field{}, errors.Wrapf(ErrMalformedEntry, "entry has %d elements", len(entry.Parts))
	}

	field := model.Field{Modifier: model.Modifier(entry.Parts[0])}
	if field.Modifier != model.Src {
		typ, err := model.ParseType(entry.Parts[1])
		if err != nil {
			return model.Field{}, err
		}
		field.Type = typ
	}

	switch len(entry.Parts) {
	case 2:
		field.Name = entry.Parts[1]
		field.DefaultTag = model.DefaultTag
	case 3:
		field.Name = entry.Parts[2]
	case 4:
		field.Name = entry.Parts[2]
		help := entry.Parts[3]
		field.Help = &help
	}

	return field, nil
}

// ParseFile reads, parses and normalises an MRO file.
func ParseFile(path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	ast, err := Parse(path, src)
	if err != nil {
		return nil, err
	}

	return Build(ast)
}

// Build normalises every block of ast. Stage sources are resolved against the directory of
// ast.File.
func Build(ast *AST) (*Result, error) {
	res := &Result{File: ast.File}
	for _, inc := range ast.Includes {
		res.Includes = append(res.Includes, inc.Path)
	}
	for _, ft := range ast.FileTypes {
		res.FileTypes = append(res.FileTypes, ft.Name)
	}

	for _, raw := range ast.Stages {
		stage, err := buildStage(ast.File, raw)
		if err != nil {
			return nil, err
		}
		res.Stages = append(res.Stages, stage)
	}

	if ast.Pipeline != nil {
		pipe, err := buildPipeline(ast.File, ast.Pipeline)
		if err != nil {
			return nil, err
		}
		res.Pipeline = pipe
	}

	return res, nil
}

// fieldSet enforces name uniqueness within one declaring list.
type fieldSet struct {
	file   string
	list   string
	fields []model.Field
	seen   map[string]bool
}

func newFieldSet(file, list string) *fieldSet {
	return &fieldSet{file: file, list: list, seen: map[string]bool{}}
}

func (fs *fieldSet) add(field model.Field, pos Pos) error {
	if fs.seen[field.Name] {
		return newError(fs.file, pos, ErrDuplicateField, "duplicate %s field %q", fs.list, field.Name)
	}
	fs.seen[field.Name] = true
	fs.fields = append(fs.fields, field)
	return nil
}

func normalizeAt(file string, entry RawEntry) (model.Field, error) {
	field, err := Normalize(entry)
	if err != nil {
		return model.Field{}, newError(file, entry.Pos, errors.Cause(err), "%v", err)
	}
	return field, nil
}

func buildStage(file string, raw RawStage) (*model.Stage, error) {
	inputs := newFieldSet(file, "input")
	outputs := newFieldSet(file, "output")
	splits := newFieldSet(file, "split")

	stage := &model.Stage{Name: raw.Name, File: file}
	var src *RawEntry
	for i, entry := range raw.Entries {
		field, err := normalizeAt(file, entry)
		if err != nil {
			return nil, err
		}

		switch field.Modifier {
		case model.In:
			err = inputs.add(field, entry.Pos)
		case model.Out:
			err = outputs.add(field, entry.Pos)
		case model.Src:
			if src != nil {
				return nil, newError(file, entry.Pos, ErrDuplicateSource, "stage %s declares more than one src entry", raw.Name)
			}
			src = &raw.Entries[i]
		}
		if err != nil {
			return nil, err
		}
	}

	if src == nil {
		return nil, newError(file, raw.Pos, ErrMissingSource, "stage %s has no src entry", raw.Name)
	}
	if len(src.Parts) < 3 {
		return nil, newError(file, src.Pos, ErrMissingSource, "src entry of stage %s has no path", raw.Name)
	}

	for _, entry := range raw.Split {
		field, err := normalizeAt(file, entry)
		if err != nil {
			return nil, err
		}
		if field.Modifier == model.Src {
			return nil, newError(file, entry.Pos, ErrMalformedEntry, "src entry not allowed in split using of stage %s", raw.Name)
		}
		if err := splits.add(field, entry.Pos); err != nil {
			return nil, err
		}
	}

	stage.Inputs = inputs.fields
	stage.Outputs = outputs.fields
	stage.Splits = splits.fields
	stage.Lang = src.Parts[1]
	stage.SourcePath = src.Parts[2]
	stage.Source = src.Parts[2]
	if !filepath.IsAbs(stage.Source) {
		stage.Source = filepath.Join(filepath.Dir(file), stage.Source)
	}

	return stage, nil
}

func buildPipeline(file string, raw *RawPipeline) (*model.Pipeline, error) {
	inputs := newFieldSet(file, "input")
	outputs := newFieldSet(file, "output")

	for _, entry := range raw.Header {
		field, err := normalizeAt(file, entry)
		if err != nil {
			return nil, err
		}
		switch field.Modifier {
		case model.In:
			err = inputs.add(field, entry.Pos)
		case model.Out:
			err = outputs.add(field, entry.Pos)
		default:
			err = newError(file, entry.Pos, ErrMalformedEntry, "src entry not allowed in pipeline %s", raw.Name)
		}
		if err != nil {
			return nil, err
		}
	}

	return &model.Pipeline{
		Name:    raw.Name,
		Inputs:  inputs.fields,
		Outputs: outputs.fields,
		Calls:   raw.Calls,
		Return:  raw.Return,
		File:    file,
	}, nil
}
