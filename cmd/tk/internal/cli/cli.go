// Package cli implements the tk command tree: info, read, write, delete
// and version, plus the exit-code mapping spec.md §6 specifies (0
// success, 1 user error, 2 connection error, 3 constraint violation).
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/tanker-db/tanker"
	"github.com/tanker-db/tanker/tkerr"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// fileConfig is the tiny wrapper loadConfig reads db_uri from; the remaining
// schema/acl-read/acl-write keys are parsed by tanker.ConfigFromYAML from
// the same document.
type fileConfig struct {
	DBURI string `yaml:"db_uri"`
}

// NewRootCommand builds the full `tk` cobra command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tk",
		Short:         "tk drives a tanker-declared schema from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "tanker.yaml", "path to the schema/config file")

	root.AddCommand(
		newVersionCmd(),
		newInfoCmd(&configPath),
		newReadCmd(&configPath),
		newWriteCmd(&configPath),
		newDeleteCmd(&configPath),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the tk version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// loadConfig reads configPath once and parses both the bare db_uri and
// the full schema/acl document out of it.
func loadConfig(configPath string) (tanker.Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return tanker.Config{}, &tkerr.ArgError{Name: "config", Message: err.Error()}
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return tanker.Config{}, &tkerr.ArgError{Name: "config", Message: err.Error()}
	}

	cfg, err := tanker.ConfigFromYAML(bytes.NewReader(raw), tanker.Config{DBURI: fc.DBURI})
	if err != nil {
		return tanker.Config{}, err
	}
	return cfg, nil
}

// connect loads the config file and opens a scoped connection, returning
// the derived context and its Close func.
func connect(ctx context.Context, configPath string) (context.Context, func(error) error, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	sctx, closeFn, err := tanker.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, &connErr{err}
	}
	return sctx, closeFn, nil
}

// connErr tags an error as a connection-stage failure so ExitCode maps it
// to exit code 2 regardless of its underlying tkerr shape.
type connErr struct{ err error }

func (e *connErr) Error() string { return e.err.Error() }
func (e *connErr) Unwrap() error { return e.err }

// ExitCode maps an error returned from cobra's Execute to spec.md §6's
// exit codes: 1 user error, 2 connection error, 3 constraint violation,
// 1 as the catch-all for anything else (an unexpected internal error is
// still the user's problem to report, not a successful run).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *connErr
	if errors.As(err, &ce) {
		return 2
	}
	var constraint *tkerr.ConstraintError
	if errors.As(err, &constraint) {
		return 3
	}
	var driver *tkerr.DriverError
	if errors.As(err, &driver) {
		return 2
	}
	var schemaErr *tkerr.SchemaError
	var resolveErr *tkerr.ResolveError
	var parseErr *tkerr.ParseError
	var argErr *tkerr.ArgError
	var notInScope *tkerr.NotInScope
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &resolveErr), errors.As(err, &parseErr),
		errors.As(err, &argErr), errors.As(err, &notInScope):
		return 1
	}
	return 1
}

// readAll exists so write's CSV path can also accept stdin via "-".
func readAll(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
