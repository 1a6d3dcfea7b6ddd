package main

import (
	"code-mentor/execution"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a snippet through the mock execution engine",
		Long: `Run a snippet through the mock execution engine.

Code can be provided via:
  - File argument: classroom run hello.py
  - Inline flag:   classroom run --lang java -c 'System.out.println("Hi");'

The language is inferred from the file extension unless --lang is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("lang", "l", "", "Language: python, java, c, c++")
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Duration("delay", execution.DefaultDelay, "Simulated execution latency")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	lang, _ := cmd.Flags().GetString("lang")
	code, _ := cmd.Flags().GetString("code")
	delay, _ := cmd.Flags().GetDuration("delay")

	client, err := loadClientConfig()
	if err != nil {
		return err
	}

	var req execution.Request
	switch {
	case len(args) == 1:
		req, err = execution.LoadSource(args[0], execution.Language(lang))
		if err != nil {
			return err
		}
	case code != "":
		if lang == "" {
			return fmt.Errorf("language required: use --lang with --code")
		}
		req = execution.Request{Source: code, Language: execution.Language(lang)}
	default:
		return fmt.Errorf("nothing to run: pass a file or --code")
	}

	engine := execution.NewEngine(logs.GetLoggerFromLevel(slog.LevelWarn), execution.WithDelay(delay))
	result, err := engine.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("  ====== %s ======", strings.ToUpper(string(result.Language)))
	output := result.Output
	if client.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
		output = color.Cyan.Render(output)
	}
	fmt.Fprintln(cmd.OutOrStdout(), header)
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
