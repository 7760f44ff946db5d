// Package cli implements memoctl, the command-line client of the memo assistant.
package cli

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"memodesk-backend/internal/client"
	"memodesk-backend/internal/history"
)

var Version = "dev"

type options struct {
	server      string
	token       string
	historyPath string
	verbose     bool

	logger *log.Logger
}

func (o *options) client() *client.Client {
	return client.NewClient(o.server, client.WithToken(o.token))
}

func (o *options) openHistory() (*history.Store, error) {
	path := o.historyPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

// NewRootCmd creates the memoctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "memoctl",
		Short: "memoctl - due diligence memo assistant",
		Long: `memoctl uploads company memos to the memo assistant and renders the
analysis it streams back: a summary, strengths and weaknesses, risks and
follow-up questions for the founders.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			opts.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
				Level:           level,
				ReportTimestamp: true,
				TimeFormat:      time.TimeOnly,
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("MEMOCTL_SERVER", "http://localhost:8080"), "memo assistant base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("MEMOCTL_TOKEN"), "bearer token")
	flags.StringVar(&opts.historyPath, "history", os.Getenv("MEMOCTL_HISTORY"), "local history database (default: user config dir)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newChatsCmd(opts))
	rootCmd.AddCommand(newShowCmd(opts))
	rootCmd.AddCommand(newShareCmd(opts))
	rootCmd.AddCommand(newRewindCmd(opts))
	rootCmd.AddCommand(newModelsCmd(opts))
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("memoctl %s\n", Version)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
