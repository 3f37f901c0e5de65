package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvappend/internal/config"
	"github.com/JonMunkholm/csvappend/internal/core"
	"github.com/JonMunkholm/csvappend/internal/logging"
	"github.com/JonMunkholm/csvappend/internal/store"
	_ "github.com/JonMunkholm/csvappend/internal/store/all" // Register all backends
)

// options are the flags shared by every subcommand.
type options struct {
	envFile string
	output  string

	delimiter string
	quote     string
	escape    string
	encoding  string
	header    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "csvappend",
		Short: "Preview, validate and append CSV/TSV files to warehouse tables",
		Long: `csvappend checks a delimited file against a warehouse table and appends it
only when every column exists with a compatible type and every value parses.

The table store is chosen with STORE_BACKEND (postgres or sqlite) and the
other settings the server reads from the environment or a .env file.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "environment file to load if present")
	pf.StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	pf.StringVar(&opts.delimiter, "delimiter", ",", `field delimiter (\t for tab; .tsv files default to tab)`)
	pf.StringVar(&opts.quote, "quote", `"`, "quote character, empty for none")
	pf.StringVar(&opts.escape, "escape", `"`, "escape character, empty for none")
	pf.StringVar(&opts.encoding, "encoding", core.EncodingUTF8, "file encoding")
	pf.BoolVar(&opts.header, "header", true, "first row holds column names")

	root.AddCommand(
		newPreviewCmd(opts),
		newValidateCmd(opts),
		newAppendCmd(opts),
		newCatalogsCmd(opts),
		newSchemasCmd(opts),
		newTablesCmd(opts),
		newDescribeCmd(opts),
	)
	return root
}

// settings starts from the defaults for filename and applies the parse
// flags the user set explicitly.
func (o *options) settings(cmd *cobra.Command, filename string) core.ParseSettings {
	s := core.SettingsForFile(filename)
	flags := cmd.Flags()
	if flags.Changed("delimiter") {
		s.Delimiter = o.delimiter
	}
	if flags.Changed("quote") {
		s.QuoteChar = o.quote
	}
	if flags.Changed("escape") {
		s.EscapeChar = o.escape
	}
	if flags.Changed("encoding") {
		s.Encoding = o.encoding
	}
	if flags.Changed("header") {
		s.Header = o.header
	}
	return s
}

// openService loads configuration and opens the configured table store.
// The caller must call the returned close function.
func (o *options) openService(ctx context.Context) (*core.Service, func(), error) {
	if o.envFile != "" {
		// A missing file is fine; the environment may already be set.
		_ = godotenv.Load(o.envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	tables, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	svc, err := core.NewService(tables, cfg)
	if err != nil {
		tables.Close()
		return nil, nil, err
	}
	return svc, func() { tables.Close() }, nil
}
