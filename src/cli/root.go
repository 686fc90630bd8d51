// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
)

const defaultName = "x509-secure-channel"

// app carries what every subcommand shares.
type app struct {
	version   string
	log       logger.Logger
	logFormat string
}

// loggerFor returns the logger for cmd, honoring --log-format.
func (a *app) loggerFor(cmd *cobra.Command) (logger.Logger, error) {
	switch a.logFormat {
	case "", "text":
		return a.log, nil
	case "json":
		return logger.NewJSONLogger(cmd.ErrOrStderr(), false).WithComponent(cmd.Name()), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", ErrUnknownFormat, a.logFormat)
	}
}

// NewRootCommand builds the command tree. A nil log writes human readable
// lines to stderr.
func NewRootCommand(version string, log logger.Logger) *cobra.Command {
	if log == nil {
		log = logger.NewCLILogger()
	}
	a := &app{version: version, log: log}

	root := &cobra.Command{
		Use:           posix.ExecutableName(defaultName),
		Short:         "X.509 key store, trust evaluator and secure channel toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "diagnostic output format: text or json")

	root.AddCommand(
		a.inspectCommand(),
		a.verifyCommand(),
		a.keygenCommand(),
		a.serveCommand(),
		a.connectCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the command tree with args, or os.Args[1:] when args is empty.
func Execute(ctx context.Context, version string, log logger.Logger, args ...string) error {
	cmd := NewRootCommand(version, log)
	if len(args) > 0 {
		cmd.SetArgs(args)
	}
	return cmd.ExecuteContext(ctx)
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cmd.Root().Name(), a.version)
		},
	}
}

// passphraseFromEnv returns the value of the named environment variable, or
// nil when name is empty or unset. The caller owns and wipes the result.
func passphraseFromEnv(name string) []byte {
	if name == "" {
		return nil
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	return []byte(value)
}
