package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/askiada/go-martian/pkg/localrun"
	"github.com/askiada/go-martian/pkg/localrun/drawer"
	"github.com/askiada/go-martian/pkg/localrun/hook"
	"github.com/askiada/go-martian/pkg/localrun/measure"
	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/mro/parser"
	"github.com/askiada/go-martian/pkg/mro/registry"
	"github.com/askiada/go-martian/pkg/stage"
)

var ErrMissingArguments = errors.New("missing arguments")

func newStageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "List, describe and run stages",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the stages of the search path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reg, err := a.registry(cmd.Context())
				if err != nil {
					return err
				}
				return listStages(cmd.OutOrStdout(), reg)
			},
		},
		&cobra.Command{
			Use:   "describe STAGE",
			Short: "Print the definition of a stage",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := a.registry(cmd.Context())
				if err != nil {
					return err
				}
				st, err := reg.Stage(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n# source: %s\n%s", st.File, st.Source, parser.FormatStage(st))
				return err
			},
		},
		newStageRunCmd(a),
		newStageLocalCmd(a),
		newStageWatchCmd(a),
	)

	return cmd
}

func listStages(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPHASES\tFILE")
	for _, st := range reg.Stages() {
		phases := make([]string, 0, 3)
		for _, p := range st.Phases() {
			phases = append(phases, string(p))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, strings.Join(phases, ","), st.File)
	}
	return errors.Wrap(tw.Flush(), "unable to write stage list")
}

type phaseOutput struct {
	RunID  string       `json:"run_id"`
	Phase  model.Phase  `json:"phase,omitempty"`
	Chunks []stage.Args `json:"chunks,omitempty"`
	Outs   stage.Outs   `json:"outs,omitempty"`
	Files  []string     `json:"files,omitempty"`
}

func newStageRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run STAGE PHASE [--FIELD=VALUE ...]",
		Short: "Run one phase of a stage",
		Long: `Run the split, main or join phase of STAGE. Every field of the phase is a flag:
repeat an array flag once per element, and a join split./out. flag once per chunk.
The result is printed as JSON.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.args) < 2 {
				return errors.Wrap(ErrMissingArguments, "usage: martian stage run STAGE PHASE [--FIELD=VALUE ...]")
			}
			ctx := cmd.Context()

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			st, err := reg.Stage(a.args[0])
			if err != nil {
				return err
			}
			phase, err := model.ParsePhase(a.args[1])
			if err != nil {
				return err
			}
			fields, err := stage.Expand(st, phase)
			if err != nil {
				return err
			}

			fs := pflag.NewFlagSet("martian stage run "+st.Name+" "+string(phase), pflag.ContinueOnError)
			fs.SetOutput(cmd.ErrOrStderr())
			bindGlobals(fs, &globals{})
			filesDir := fs.String("files-dir", a.cfg.Run.FilesDir, "directory outputs are written to")
			runID := fs.String("run-id", "", "identifier of the invocation (random when empty)")
			values, err := fieldFlags(fs, fields)
			if err != nil {
				return err
			}
			if err := fs.Parse(args); err != nil {
				if errors.Is(err, pflag.ErrHelp) {
					return nil
				}
				return err
			}

			bindings, err := stage.BindFlags(st, phase, changed(fs, values))
			if err != nil {
				return err
			}
			adapter, err := a.adapter(ctx, *filesDir)
			if err != nil {
				return err
			}

			res, err := adapter.Run(ctx, stage.Request{Stage: st, Phase: phase, Bindings: bindings, RunID: *runID})
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), phaseOutput{
				RunID:  res.RunID,
				Phase:  res.Phase,
				Chunks: res.Chunks,
				Outs:   res.Outs,
				Files:  res.Files,
			})
		},
	}
}

type localOutput struct {
	RunID     string       `json:"run_id"`
	Chunks    []stage.Args `json:"chunks,omitempty"`
	ChunkOuts []stage.Outs `json:"chunk_outs,omitempty"`
	Outs      stage.Outs   `json:"outs"`
	Files     []string     `json:"files,omitempty"`
}

func newStageLocalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "local STAGE [--INPUT=VALUE ...]",
		Short: "Run every phase of a stage in this process",
		Long: `Run split, one main per chunk and join for STAGE, or its single main phase.
Chunks write to chnk<i> directories under --files-dir.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.args) < 1 {
				return errors.Wrap(ErrMissingArguments, "usage: martian stage local STAGE [--INPUT=VALUE ...]")
			}
			ctx := cmd.Context()

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			st, err := reg.Stage(a.args[0])
			if err != nil {
				return err
			}
			// the first phase binds exactly the stage inputs
			phase := st.Phases()[0]
			fields, err := stage.Expand(st, phase)
			if err != nil {
				return err
			}

			fs := pflag.NewFlagSet("martian stage local "+st.Name, pflag.ContinueOnError)
			fs.SetOutput(cmd.ErrOrStderr())
			bindGlobals(fs, &globals{})
			filesDir := fs.String("files-dir", a.cfg.Run.FilesDir, "root directory of the run")
			concurrency := fs.Int("concurrency", a.cfg.Run.Concurrency, "chunks running at the same time")
			draw := fs.String("draw", "", "write the run graph to this DOT file")
			showMeasure := fs.Bool("measure", false, "print phase durations to stderr")
			values, err := fieldFlags(fs, fields)
			if err != nil {
				return err
			}
			if err := fs.Parse(args); err != nil {
				if errors.Is(err, pflag.ErrHelp) {
					return nil
				}
				return err
			}

			bindings, err := stage.BindFlags(st, phase, changed(fs, values))
			if err != nil {
				return err
			}
			adapter, err := a.adapter(ctx, *filesDir)
			if err != nil {
				return err
			}

			var (
				msr   measure.Measure
				hooks []hook.RunOption
			)
			if *showMeasure || *draw != "" {
				msr = measure.NewDefaultMeasure()
				hooks = append(hooks, measure.RunMeasure(msr))
			}
			if *draw != "" {
				hooks = append(hooks, drawer.RunDrawer(drawer.NewDOTDrawer(*draw), msr))
			}

			runner, err := localrun.New(adapter,
				localrun.WithLogger(a.logger),
				localrun.WithFilesDir(*filesDir),
				localrun.WithConcurrency(*concurrency),
				localrun.WithRunOptions(hooks...),
			)
			if err != nil {
				return err
			}
			res, err := runner.Run(ctx, st, bindings)
			if err != nil {
				return err
			}

			if *showMeasure {
				if err := writeReport(cmd.ErrOrStderr(), msr); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), localOutput{
				RunID:     res.RunID,
				Chunks:    res.Chunks,
				ChunkOuts: res.ChunkOuts,
				Outs:      res.Outs,
				Files:     res.Files,
			})
		},
	}
}

func writeReport(w io.Writer, msr measure.Measure) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tCOUNT\tAVERAGE\tTOTAL")
	for _, row := range measure.Report(msr) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.Name, row.Count, row.Average, row.Total)
	}
	return errors.Wrap(tw.Flush(), "unable to write measure report")
}

func newStageWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the search path on every .mro change and report the stages found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, err := registry.NewWatcher(ctx, a.cfg.MROPath, a.registryOptions()...)
			if err != nil {
				return err
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s: %d stages\n", strings.Join(absDirs(w.Current().Dirs()), string(filepath.ListSeparator)), len(w.Current().Names()))

			err = w.Run(ctx, func(reg *registry.Registry, err error) {
				if err != nil {
					fmt.Fprintf(out, "reload failed: %v\n", err)
					return
				}
				fmt.Fprintf(out, "reloaded: %d stages\n", len(reg.Names()))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func absDirs(dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		out[i] = d
	}
	return out
}
