package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/askiada/go-martian/internal/config"
	"github.com/askiada/go-martian/internal/logging"
	"github.com/askiada/go-martian/internal/objectstore"
	"github.com/askiada/go-martian/pkg/mro/registry"
	"github.com/askiada/go-martian/pkg/stage"
)

// app carries what every subcommand needs once the global flags are known.
type app struct {
	globals  globals
	builtins stage.Builtins
	cfg      *config.Config
	logger   *zap.Logger
	// args holds the positional arguments of commands parsing their own flags.
	args []string
}

func newRootCmd(builtins stage.Builtins) *cobra.Command {
	a := &app{builtins: builtins, logger: logging.Nop()}

	root := &cobra.Command{
		Use:   "martian",
		Short: "Inspect MRO stages and run their phases",
		Long: `martian loads stage and pipeline definitions from the .mro files of a search path
(--mropath, MROPATH or the mropath config entry) and runs the split, main and join
phases of a stage with the Go implementation found in its source directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.DisableFlagParsing {
				rest, err := prescan(args, &a.globals)
				if err != nil {
					return err
				}
				a.args = rest
			}
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	bindGlobals(root.PersistentFlags(), &a.globals)

	root.AddCommand(newStageCmd(a), newPipelineCmd(a))

	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(config.Path(a.globals.config))
	if err != nil {
		return err
	}
	if a.globals.mropath != "" {
		cfg.MROPath = registry.SplitPath(a.globals.mropath)
	}
	if a.globals.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return errors.Wrap(err, "unable to initialise logger")
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) registry(ctx context.Context) (*registry.Registry, error) {
	return registry.Load(ctx, a.cfg.MROPath, a.registryOptions()...)
}

func (a *app) registryOptions() []registry.Option {
	return []registry.Option{
		registry.WithLogger(a.logger),
		registry.WithSkipInvalid(a.cfg.Registry.SkipInvalid),
		registry.WithParallelism(a.cfg.Registry.Parallelism),
	}
}

func (a *app) loader() stage.Loader {
	loaders := stage.ChainLoader{a.builtins}
	if a.cfg.Run.Interpreter {
		loaders = append(loaders, stage.NewInterpreter())
	}
	return loaders
}

func (a *app) adapter(ctx context.Context, filesDir string) (*stage.Adapter, error) {
	opts := []stage.AdapterOption{stage.WithLogger(a.logger), stage.WithFilesDir(filesDir)}

	if a.cfg.ObjectStore.Enabled {
		store, err := objectstore.NewMinIO(a.cfg.ObjectStore.Config, a.logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, a.cfg.ObjectStore.Region); err != nil {
			return nil, err
		}
		opts = append(opts, stage.WithPublisher(store))
	}

	return stage.NewAdapter(a.loader(), opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "unable to encode result")
}
