package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitDB         = 4
	exitViolations = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var dsn, output string
	cmd := &cobra.Command{
		Use:           "hierarchyctl",
		Short:         "Operate the devotee leadership hierarchy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres connection string (defaults to DB_* env)")

	cmd.PersistentFlags().StringVarP(&output, "output", "o", formatJSON, "Output format: json or yaml")

	env := &cliEnv{dsn: &dsn, output: &output}
	cmd.AddCommand(newMigrateCmd(env))
	cmd.AddCommand(newCheckCmd(env))
	cmd.AddCommand(newPreviewCmd(env))
	cmd.AddCommand(newCandidatesCmd(env))
	cmd.AddCommand(newHistoryCmd(env))
	cmd.AddCommand(newExportCmd(env))
	cmd.AddCommand(newPersonCmd(env))
	cmd.AddCommand(newOutboxCmd(env))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
