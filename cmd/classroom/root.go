package main

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

// ClientConfig holds the terminal side settings of run, chat and inspect.
type ClientConfig struct {
	User string `envconfig:"CLASSROOM_USER"`
	// CLASSROOM_COLOURS enables colorized terminal output
	Colours bool `envconfig:"CLASSROOM_COLOURS" default:"true"`
}

func loadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ClientConfig{}, configError{err}
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classroom",
		Short: "Classroom chat and mock code runner",
		Long: `classroom - a teaching room where students and a facilitator chat
and run code snippets through a mock execution engine.

The chat backend is either local (simulated echo, cached in BadgerDB)
or remote (Redis streams shared by every participant).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newChatCmd(), newInspectCmd())
	return root
}
