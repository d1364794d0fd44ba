package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-martian/pkg/localrun/drawer"
	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/mro/parser"
)

func newPipelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipelines",
	}

	var output string
	graphCmd := &cobra.Command{
		Use:   "graph PIPELINE",
		Short: "Print the call graph of a pipeline in DOT format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			pipe, err := reg.Pipeline(args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return drawer.DrawPipeline(cmd.OutOrStdout(), pipe)
			}
			file, err := os.Create(output)
			if err != nil {
				return errors.Wrapf(err, "unable to create %s", output)
			}
			defer file.Close()
			if err := drawer.DrawPipeline(file, pipe); err != nil {
				return err
			}
			return errors.Wrapf(file.Close(), "unable to close %s", output)
		},
	}
	graphCmd.Flags().StringVarP(&output, "output", "o", "", "write the graph to this file instead of stdout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the pipelines of the search path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reg, err := a.registry(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range reg.Pipelines() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "describe PIPELINE",
			Short: "Print the interface and calls of a pipeline",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := a.registry(cmd.Context())
				if err != nil {
					return err
				}
				pipe, err := reg.Pipeline(args[0])
				if err != nil {
					return err
				}
				return describePipeline(cmd.OutOrStdout(), pipe)
			},
		},
		graphCmd,
	)

	return cmd
}

func describePipeline(w io.Writer, pipe *model.Pipeline) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\npipeline %s\n", pipe.File, pipe.Name)
	for _, f := range pipe.Inputs {
		fmt.Fprintf(&b, "    %s\n", parser.FormatField(f))
	}
	for _, f := range pipe.Outputs {
		fmt.Fprintf(&b, "    %s\n", parser.FormatField(f))
	}
	for _, call := range pipe.Calls {
		b.WriteString("call ")
		if len(call.Modifiers) > 0 {
			b.WriteString(strings.Join(call.Modifiers, " ") + " ")
		}
		b.WriteString(call.Name + "\n")
		for _, binding := range call.Bindings {
			fmt.Fprintf(&b, "    %s = %s\n", binding.Key, binding.Value)
		}
	}
	if len(pipe.Return) > 0 {
		b.WriteString("return\n")
		for _, binding := range pipe.Return {
			fmt.Fprintf(&b, "    %s = %s\n", binding.Key, binding.Value)
		}
	}

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "unable to write pipeline")
}
