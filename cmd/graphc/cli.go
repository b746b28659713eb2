// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	graphfmt "github.com/gx-org/graphc/base/fmt"
	"github.com/gx-org/graphc/internal/envconfig"
	"github.com/gx-org/graphc/internal/logutil"
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
	"github.com/gx-org/graphc/target"
	"github.com/gx-org/graphc/target/ref"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func newRootCmd(w io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "graphc",
		Short:         "Graph compiler for inference models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}
	rootCmd.SetOut(w)
	rootCmd.AddCommand(
		newCompileCmd(),
		newTargetsCmd(),
		newOpsCmd(),
		newEnvCmd(),
	)
	return rootCmd
}

func newCompileCmd() *cobra.Command {
	var (
		s          sample
		targetName string
		opts       target.Options
		stats      bool
		printIR    bool
		number     bool
		run        bool
	)
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a sample recurrent graph for a target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := target.Lookup(targetName)
			if err != nil {
				return err
			}
			p, params, err := s.build()
			if err != nil {
				return err
			}
			var collected []pass.Stat
			if stats {
				opts.Stats = func(st pass.Stat) { collected = append(collected, st) }
			}
			w := cmd.OutOrStdout()
			if printIR {
				printProgram(w, "before compilation", p, number)
			}
			if err := target.Compile(p, t, opts); err != nil {
				return err
			}
			if printIR {
				printProgram(w, "after compilation", p, number)
			}
			if stats {
				printStats(w, collected)
			}
			if run {
				outs, err := target.Run(p, params)
				if err != nil {
					return err
				}
				printOutputs(w, outs)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&s.op, "op", "rnn", "Recurrent operator: rnn, gru, or lstm")
	flags.StringVar(&s.direction, "direction", op.Forward.String(), "Direction: forward, reverse, or bidirectional")
	flags.IntVar(&s.seq, "seq", 3, "Maximum sequence length")
	flags.IntVar(&s.batch, "batch", 1, "Batch size")
	flags.IntVar(&s.input, "input", 2, "Input size")
	flags.IntVar(&s.hidden, "hidden", 2, "Hidden size")
	flags.IntSliceVar(&s.seqLens, "seq-lens", nil, "Sequence length of every batch element")
	flags.StringSliceVar(&s.activations, "activations", nil, "Activation functions")
	flags.BoolVar(&s.bias, "bias", false, "Add a bias")
	flags.BoolVar(&s.linearBeforeReset, "linear-before-reset", false, "Apply the linear transformation before the reset gate (gru only)")
	flags.StringVar(&targetName, "target", ref.Name, "Compilation target")
	flags.StringSliceVar(&opts.Skip, "skip", nil, "Names of the passes to skip")
	flags.BoolVar(&stats, "stats", false, "Print statistics about every pass")
	flags.BoolVar(&printIR, "print", false, "Print the program before and after compilation")
	flags.BoolVar(&number, "number", false, "Number the lines of printed programs")
	flags.BoolVar(&run, "run", false, "Run the compiled program and print its outputs")
	return cmd
}

func printProgram(w io.Writer, title string, p *ir.Program, number bool) {
	s := p.String()
	if number {
		s = graphfmt.Number(s)
	}
	fmt.Fprintf(w, "%s:\n%s\n", title, graphfmt.Indent(s))
}

func printStats(w io.Writer, stats []pass.Stat) {
	table := newTable(w, "PASS", "MODULE", "BEFORE", "AFTER", "ELAPSED")
	for _, s := range stats {
		table.Append([]string{s.Pass, s.Module, strconv.Itoa(s.Before), strconv.Itoa(s.After), s.Elapsed.String()})
	}
	table.Render()
}

func printOutputs(w io.Writer, outs []ir.Argument) {
	for i, out := range outs {
		fmt.Fprintf(w, "output %d {%s}: %s\n", i, out.Shape(), out)
	}
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the compilation targets and their passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := newTable(cmd.OutOrStdout(), "NAME", "PASSES")
			for _, name := range target.Names() {
				t, err := target.Lookup(name)
				if err != nil {
					return err
				}
				var passes []string
				for _, p := range t.Passes(target.Options{}) {
					passes = append(passes, p.Name())
				}
				table.Append([]string{name, strings.Join(passes, ",")})
			}
			table.Render()
			return nil
		},
	}
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operators known by the compiler",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range op.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the environment variables read by the compiler",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			vars := envconfig.AsMap()
			table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
			for _, name := range slices.Sorted(maps.Keys(vars)) {
				v := vars[name]
				table.Append([]string{v.Name, fmt.Sprint(v.Value), v.Description})
			}
			table.Render()
		},
	}
}
