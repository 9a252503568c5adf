package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/store"
)

// TablesOptions holds flags for the tables command. It accepts the same
// configuration as serve so one config file works for both, but only the
// database and marker settings are used.
type TablesOptions struct {
	*RootOptions
	Config config.Config
}

// TableInfo describes one collection table.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	// Readable is set when a marker declares the collection, so GET
	// requests reach storage.
	Readable bool `json:"readable"`
}

// TableList renders as one "name: col, col" line per table in text mode,
// with " (readable)" appended for declared collections.
type TableList []TableInfo

func (l TableList) String() string {
	if len(l) == 0 {
		return "No collections."
	}
	var b strings.Builder
	for i, t := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", t.Name, strings.Join(t.Columns, ", "))
		if t.Readable {
			b.WriteString(" (readable)")
		}
	}
	return b.String()
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts, Config: config.Default()}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List collections and their columns",
		Long: `List every collection table in the database with its columns in
ordinal order. Collections declared by a marker file in --marker-dir are
flagged as readable.

Examples:
  shelf tables --db ./shelf.db
  shelf tables --config shelf.toml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(opts, cmd)
		},
	}

	opts.Config.Flags(cmd.Flags())
	return cmd
}

func runTables(opts *TablesOptions, cmd *cobra.Command) error {
	if err := config.Load(viper.New(), cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg := opts.Config

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", cfg.DB))
	}

	out.VerboseLog("Opening database %s (%s)", cfg.DB, cfg.DBDriver)
	st, err := store.Open(cfg.DB, store.WithDriver(cfg.DBDriver))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	out.VerboseLog("Reading markers in %s", cfg.MarkerDir)
	declared, err := marker.NewDir(cfg.MarkerDir).List()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list markers", err)
	}

	ctx := cmd.Context()
	names, err := st.Tables(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list tables", err)
	}

	list := make(TableList, 0, len(names))
	for _, name := range names {
		cols, err := st.Columns(ctx, name)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to read columns of %s", name), err)
		}
		list = append(list, TableInfo{
			Name:     name,
			Columns:  cols,
			Readable: slices.Contains(declared, name),
		})
	}
	return out.Success(list)
}
