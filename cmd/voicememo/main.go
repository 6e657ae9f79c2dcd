// Command voicememo runs the transcription workflow service.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/version"
)

var (
	cfgFile string
	envFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voicememo",
		Short:         "Transcode, upload and transcribe recordings",
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config.yml")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to .env")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCmd(), newTasksCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
