package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/askiada/go-martian/pkg/mro/model"
)

var ErrFlagConflict = errors.New("field name clashes with a command flag")

type globals struct {
	config  string
	mropath string
	verbose bool
}

func bindGlobals(fs *pflag.FlagSet, g *globals) {
	fs.StringVar(&g.config, "config", "", "configuration file (default martian.yaml, or MARTIAN_CONFIG)")
	fs.StringVar(&g.mropath, "mropath", "", "MRO search path, a list of directories separated like PATH")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
}

// prescan extracts the global flags from args of a command that parses its own flags, and
// returns the remaining positional arguments.
func prescan(args []string, g *globals) ([]string, error) {
	fs := pflag.NewFlagSet("globals", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	bindGlobals(fs, g)

	err := fs.Parse(args)
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		return nil, errors.Wrap(err, "unable to parse flags")
	}
	return fs.Args(), nil
}

// fieldFlags declares one repeatable string flag per field.
func fieldFlags(fs *pflag.FlagSet, fields []model.Field) (map[string]*[]string, error) {
	values := make(map[string]*[]string, len(fields))
	for _, f := range fields {
		if fs.Lookup(f.Name) != nil {
			return nil, errors.Wrapf(ErrFlagConflict, "--%s", f.Name)
		}
		usage := f.Type.String()
		if help := f.HelpText(); help != "" {
			usage = fmt.Sprintf("%s (%s)", help, f.Type)
		}
		values[f.Name] = fs.StringArray(f.Name, nil, usage)
	}
	return values, nil
}

// changed keeps the values of the field flags that were actually given.
func changed(fs *pflag.FlagSet, values map[string]*[]string) map[string][]string {
	out := make(map[string][]string, len(values))
	for name, v := range values {
		if fs.Changed(name) {
			out[name] = *v
		}
	}
	return out
}
