package stage

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Signatures of the entry points an interpreted implementation exports. Any of them may be
// omitted.
type (
	scriptSplit func(meta map[string]string, args map[string]interface{}) (map[string]interface{}, error)
	scriptMain  func(meta map[string]string, args, outs map[string]interface{}) error
	scriptJoin  func(meta map[string]string, args, outs map[string]interface{}, chunkDefs, chunkOuts []map[string]interface{}) error
)

// Interpreter loads Go source files found in a stage source directory and runs them with yaegi.
//
// The files must share one package and may export:
//
//	func Split(meta map[string]string, args map[string]interface{}) (map[string]interface{}, error)
//	func Main(meta map[string]string, args, outs map[string]interface{}) error
//	func Join(meta map[string]string, args, outs map[string]interface{}, chunkDefs, chunkOuts []map[string]interface{}) error
//
// Split returns {"chunks": [...]}, one argument map per chunk.
type Interpreter struct {
	mu    sync.Mutex
	cache map[string]*script
}

// NewInterpreter returns an Interpreter with an empty cache.
func NewInterpreter() *Interpreter {
	return &Interpreter{cache: map[string]*script{}}
}

type script struct {
	split scriptSplit
	main  scriptMain
	join  scriptJoin
}

func (in *Interpreter) Load(stage *model.Stage) (Implementation, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if s, ok := in.cache[stage.Source]; ok {
		return s, nil
	}

	files, err := sourceFiles(stage.Source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoImplementation, "no Go sources in %s", stage.Source)
	}

	s, err := compile(files)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load stage %s", stage.Name)
	}
	in.cache[stage.Source] = s

	return s, nil
}

func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNoImplementation, "source directory %s does not exist", dir)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", dir)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	return files, nil
}

func compile(files []string) (*script, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errors.Wrap(err, "unable to load stdlib symbols")
	}

	var pkg string
	fset := token.NewFileSet()
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read %s", file)
		}
		clause, err := parser.ParseFile(fset, file, src, parser.PackageClauseOnly)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid Go source %s", file)
		}
		if pkg == "" {
			pkg = clause.Name.Name
		} else if pkg != clause.Name.Name {
			return nil, errors.Errorf("%s declares package %s, expected %s", file, clause.Name.Name, pkg)
		}
		if _, err := i.Eval(string(src)); err != nil {
			return nil, errors.Wrapf(err, "unable to evaluate %s", file)
		}
	}

	s := &script{}
	if err := lookup(i, pkg, "Split", &s.split); err != nil {
		return nil, err
	}
	if err := lookup(i, pkg, "Main", &s.main); err != nil {
		return nil, err
	}
	if err := lookup(i, pkg, "Join", &s.join); err != nil {
		return nil, err
	}

	return s, nil
}

// lookup binds the exported function pkg.name to dst when it exists. A function with the wrong
// signature is an error.
func lookup(i *interp.Interpreter, pkg, name string, dst any) error {
	v, err := i.Eval(pkg + "." + name)
	if err != nil {
		// undefined symbol
		return nil
	}
	if !v.IsValid() || !v.CanInterface() {
		return errors.Errorf("%s.%s is not a function", pkg, name)
	}
	fv := reflect.ValueOf(v.Interface())
	if fv.Kind() != reflect.Func {
		return errors.Errorf("%s.%s is not a function", pkg, name)
	}

	target := reflect.ValueOf(dst).Elem()
	if !fv.Type().ConvertibleTo(target.Type()) {
		return errors.Errorf("%s.%s has signature %s, expected %s", pkg, name, fv.Type(), target.Type())
	}
	target.Set(fv.Convert(target.Type()))

	return nil
}

func (s *script) Split(ctx context.Context, md Metadata, args Args) ([]Args, error) {
	if s.split == nil {
		return nil, errors.Wrap(ErrMissingEntryPoint, string(model.PhaseSplit))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.split(md.Map(), args)
	if err != nil {
		return nil, err
	}
	return chunksOf(res)
}

func (s *script) Main(ctx context.Context, md Metadata, args Args, outs Outs) error {
	if s.main == nil {
		return errors.Wrap(ErrMissingEntryPoint, string(model.PhaseMain))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.main(md.Map(), args, outs)
}

func (s *script) Join(ctx context.Context, md Metadata, args Args, outs Outs, chunkDefs []Args, chunkOuts []Outs) error {
	if s.join == nil {
		return errors.Wrap(ErrMissingEntryPoint, string(model.PhaseJoin))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	defs := make([]map[string]interface{}, len(chunkDefs))
	for i, d := range chunkDefs {
		defs[i] = d
	}
	chunkOutMaps := make([]map[string]interface{}, len(chunkOuts))
	for i, o := range chunkOuts {
		chunkOutMaps[i] = o
	}
	return s.join(md.Map(), args, outs, defs, chunkOutMaps)
}

// chunksOf extracts the "chunks" list of a split result.
func chunksOf(res map[string]interface{}) ([]Args, error) {
	raw, ok := res["chunks"]
	if !ok {
		return nil, errors.Wrap(ErrInvalidChunks, `result has no "chunks" key`)
	}
	if raw == nil {
		return []Args{}, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		return nil, errors.Wrapf(ErrInvalidChunks, "chunks is a %T", raw)
	}

	chunks := make([]Args, rv.Len())
	for i := range chunks {
		elem := rv.Index(i).Interface()
		m, ok := elem.(map[string]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrInvalidChunks, "chunk %d is a %T", i, elem)
		}
		chunks[i] = m
	}
	return chunks, nil
}
