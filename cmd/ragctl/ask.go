package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	ragd "github.com/kailas-cloud/ragd/pkg/sdk"
)

func newAskCmd(g *globalFlags) *cobra.Command {
	var sources bool

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			var ans ragd.Answer
			if sources {
				ans, err = c.AskWithSources(cmd.Context(), question)
			} else {
				ans, err = c.Ask(cmd.Context(), question)
			}
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sources, "sources", false, "ask through the admin API and list source documents")
	return cmd
}

func newChatCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop (empty line or \"exit\" quits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !sc.Scan() {
					fmt.Fprintln(out)
					return sc.Err()
				}
				q := strings.TrimSpace(sc.Text())
				if q == "" || q == "exit" || q == "quit" {
					return nil
				}

				ans, err := c.Ask(cmd.Context(), q)
				if err != nil {
					// server-side replies are shown and the loop continues
					var re *ragd.ReplyError
					if errors.As(err, &re) {
						fmt.Fprintln(out, re.Message)
						continue
					}
					return err
				}
				printAnswer(out, ans)
			}
		},
	}
}

func printAnswer(w io.Writer, ans ragd.Answer) {
	fmt.Fprintln(w, ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(ans.Sources, ", "))
	}
	fmt.Fprintf(w, "(%.2fs)\n", ans.Time)
}
