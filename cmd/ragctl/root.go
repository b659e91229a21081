package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragd/internal/version"
	ragd "github.com/kailas-cloud/ragd/pkg/sdk"
)

type globalFlags struct {
	server  string
	api     string
	token   string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Ask questions and manage documents on a ragd server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&g.server, "server", envOr("RAGD_SERVER", "localhost:9999"), "question server address (host:port)")
	f.StringVar(&g.api, "api", envOr("RAGD_API", "http://localhost:8080"), "admin API base URL")
	f.StringVar(&g.token, "token", os.Getenv("RAGD_API_KEY"), "admin API bearer token")
	f.DurationVar(&g.timeout, "timeout", 120*time.Second, "per-call timeout")
	f.BoolVar(&g.json, "json", false, "print raw JSON")

	root.AddCommand(
		newAskCmd(g),
		newChatCmd(g),
		newPingCmd(g),
		newStatusCmd(g),
		newHealthCmd(g),
		newDocsCmd(g),
		newPipelineCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globalFlags) client() (*ragd.Client, error) {
	return ragd.New(g.server,
		ragd.WithAdminURL(g.api),
		ragd.WithToken(g.token),
		ragd.WithTimeout(g.timeout),
	)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ragctl", version.String())
		},
	}
}
