package main

import (
	"github.com/spf13/cobra"

	ragd "github.com/kailas-cloud/ragd/pkg/sdk"
)

func newPipelineCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run processing steps",
	}

	run := func(step string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}

			var st ragd.PipelineStatus
			switch step {
			case "process":
				st, err = c.Process(cmd.Context())
			case "reset":
				st, err = c.ResetPipeline(cmd.Context())
			default:
				st, err = c.RunStep(cmd.Context(), step)
			}
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printPipeline(cmd.OutOrStdout(), st)
			return nil
		}
	}

	for _, sc := range []struct{ use, short string }{
		{ragd.StepChunk, "Load documents and split them into chunks"},
		{ragd.StepEmbed, "Embed the chunks"},
		{ragd.StepIndex, "Build and install the vector index"},
		{"process", "Run chunk, embed and index in order"},
		{"reset", "Discard step results (the installed index keeps serving)"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE:  run(sc.use),
		})
	}
	return cmd
}
