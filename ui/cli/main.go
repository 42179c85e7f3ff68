// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for Keyfetch using the
// Cobra library. The root command performs one provisioning run; the
// `version` and `check` subcommands are auxiliary.
package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/toeirei/keyfetch/buildvars"
	"github.com/toeirei/keyfetch/internal/config"
	"github.com/toeirei/keyfetch/internal/i18n"
	"github.com/toeirei/keyfetch/internal/keysource"
	"github.com/toeirei/keyfetch/internal/logging"
	"github.com/toeirei/keyfetch/internal/merge"
	"github.com/toeirei/keyfetch/internal/notify"
	"github.com/toeirei/keyfetch/internal/sshkey"
	"github.com/toeirei/keyfetch/internal/store"
	"github.com/toeirei/keyfetch/internal/transport"
)

var version = "dev" // set by the linker
var cfgFile string
var verbose bool

var appConfig config.Config

// setupDefaultServices loads configuration, initializes i18n and logging.
// It runs before every command that needs the full service stack.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	var explicitPath *string
	if cfgFile != "" {
		explicitPath = &cfgFile
	}

	var err error
	appConfig, err = config.LoadConfig(cmd, config.Defaults(), explicitPath)
	if err != nil {
		return errors.New(i18n.T("cli.error_config", err))
	}

	// First run, or the config file was deleted: persist the effective
	// config so there is a file to inspect and edit. Never fatal.
	if cfgFile == "" {
		if path, writeErr := config.EnsureDefaultFile(&appConfig); writeErr != nil {
			logging.Warnf("could not write default config file: %v", writeErr)
		} else if path != "" {
			logging.Debugf("wrote default config to %s", path)
		}
	}

	i18n.Init(appConfig.Language)
	logging.SetDebug(verbose)
	return nil
}

// NewRootCmd constructs the keyfetch root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyfetch [account] [topic]",
		Short: i18n.T("cli.short"),
		Long: "Keyfetch fetches a user's public SSH keys from a key host, merges them\n" +
			"idempotently into the local authorized_keys file, and sends a completion\n" +
			"notification. It runs once per invocation, to completion or failure.",
		Args:              cobra.MaximumNArgs(2),
		PersistentPreRunE: setupDefaultServices,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				appConfig.Account = args[0]
			}
			if len(args) > 1 {
				appConfig.Topic = args[1]
			}
			return runProvision(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to an explicit config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.version",
				buildvars.VersionOrDefault(version), commitOrDefault()))
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Structurally validate the local authorized_keys file",
		RunE:  runCheck,
	}

	cmd.AddCommand(versionCmd, checkCmd)
	return cmd
}

func commitOrDefault() string {
	if buildvars.Commit != "" {
		return buildvars.Commit
	}
	return "unknown"
}

// runProvision performs one full provisioning run with the loaded config.
func runProvision(cmd *cobra.Command) error {
	sshDir, err := appConfig.ResolveSSHDir()
	if err != nil {
		return err
	}

	logging.Info(i18n.T("run.start", appConfig.Account))

	fetcher := transport.New(appConfig.ConnectTimeout, appConfig.MaxTime,
		appConfig.RetryCount, appConfig.RetryDelay)
	st := store.New(sshDir)
	notifier := notify.New(appConfig.NotifyURL, appConfig.Topic, appConfig.MaxTime)

	engine := merge.NewEngine(fetcher, st, notifier,
		appConfig.Account, appConfig.KeyAPIURL, appConfig.Topic)

	result, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		i18n.T("run.summary", result.Added, result.Skipped, result.Total))
	return nil
}

// runCheck validates every line of the local authorized_keys file against
// the authorized_keys wire format and reports problems. Informational only.
func runCheck(cmd *cobra.Command, args []string) error {
	sshDir, err := appConfig.ResolveSSHDir()
	if err != nil {
		return err
	}
	st := store.New(sshDir)

	lines, err := st.Lines()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(cmd.OutOrStdout(), "no authorized_keys file at %s\n", st.Path())
			return nil
		}
		return err
	}

	valid, bad := 0, 0
	byAlgorithm := map[string]int{}
	for i, line := range lines {
		if line == "" || line[0] == '#' {
			continue
		}
		if err := sshkey.Validate(line); err != nil {
			bad++
			logging.Warnf("line %d: %v", i+1, err)
			continue
		}
		valid++
		if alg, _, comment, err := sshkey.Parse(line); err == nil {
			byAlgorithm[alg]++
			logging.Debugf("line %d: %s %s", i+1, alg, comment)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid keys, %d problem lines\n", st.Path(), valid, bad)
	for _, alg := range slices.Sorted(maps.Keys(byAlgorithm)) {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", alg, byAlgorithm[alg])
	}
	if bad > 0 {
		return fmt.Errorf("%d problem lines in %s", bad, st.Path())
	}
	return nil
}

// Execute runs the CLI and returns the process exit code. Fetch and parse
// failures exit non-zero; notification failure never does. Each failure
// class surfaces as a distinct, localized message.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		switch {
		case errors.Is(err, transport.ErrFetchFailed):
			logging.Error(i18n.T("run.fetch_failed", appConfig.Account, err))
		case errors.Is(err, keysource.ErrParseFailed):
			logging.Error(i18n.T("run.parse_failed", err))
		default:
			logging.Error(err.Error())
		}
		return 1
	}
	return 0
}
