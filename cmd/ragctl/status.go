package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	ragd "github.com/kailas-cloud/ragd/pkg/sdk"
)

func newPingCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the question server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pong")
			return nil
		},
	}
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var viaTCP bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show readiness and pipeline state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}

			var st ragd.ServerStatus
			if viaTCP {
				st, err = c.ServerStatus(cmd.Context())
			} else {
				st, err = c.Status(cmd.Context())
			}
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaTCP, "tcp", false, "query the question server instead of the admin API")
	return cmd
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show component health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			r, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), r)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "status:", r.Status)
			names := make([]string, 0, len(r.Checks))
			for name := range r.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-10s %s\n", name, r.Checks[name])
			}
			return nil
		},
	}
}

func printStatus(w io.Writer, st ragd.ServerStatus) {
	fmt.Fprintln(w, "ready:", st.Ready)
	if st.Version != "" {
		fmt.Fprintf(w, "version: %s (%s)\n", st.Version, st.Commit)
	}
	if st.Pipeline != nil {
		printPipeline(w, *st.Pipeline)
	}
}

func printPipeline(w io.Writer, p ragd.PipelineStatus) {
	for _, s := range p.Steps {
		line := fmt.Sprintf("  %-6s %-8s %d/%d", s.Step, s.State, s.Done, s.Total)
		if s.Error != "" {
			line += "  " + s.Error
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "documents: %d  chunks: %d  vectors: %d  indexed: %d (%s)\n",
		p.Documents, p.Chunks, p.Vectors, p.IndexedChunks, p.IndexBackend)
	if len(p.FailedDocs) > 0 {
		fmt.Fprintln(w, "failed documents:", p.FailedDocs)
	}
}
