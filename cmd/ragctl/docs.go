package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newDocsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, upload and remove documents",
	}
	cmd.AddCommand(newDocsListCmd(g), newDocsUploadCmd(g), newDocsRemoveCmd(g))
	return cmd
}

func newDocsListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			docs, err := c.Documents(cmd.Context())
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), docs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Size, d.ModTime.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newDocsUploadCmd(g *globalFlags) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload .pdf, .docx or .txt files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			for _, path := range args {
				info, err := c.UploadFile(cmd.Context(), path, overwrite)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", info.Name, info.Size)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing document with the same name")
	return cmd
}

func newDocsRemoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Move a document to the removed directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s -> %s\n", res.Name, res.MovedTo)
			return nil
		},
	}
}
