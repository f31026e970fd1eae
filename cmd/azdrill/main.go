// Package main provides the CLI entrypoint for azdrill.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/azdrill/internal/abc"
	"github.com/verte-zerg/azdrill/internal/config"
	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
	"github.com/verte-zerg/azdrill/internal/render"
	"github.com/verte-zerg/azdrill/internal/sheet"
	"github.com/verte-zerg/azdrill/internal/stats"
	"github.com/verte-zerg/azdrill/internal/store"
	"github.com/verte-zerg/azdrill/internal/tui"
	"github.com/verte-zerg/azdrill/internal/web"
)

const (
	defaultBatchSize       = quiz.DefaultBatchSize
	defaultReviewThreshold = quiz.DefaultReviewThreshold
	defaultReviewCooldown  = 45
	defaultAddr            = "127.0.0.1:8080"
	defaultResults         = resultsDB
	dotEnvPath             = ".env"
)

const (
	resultsDB    = "db"
	resultsSheet = "sheet"
)

var (
	storeWorkbook string
	storeSheet    string
	storeDB       string
	storeResults  string

	quizMode            string
	quizBatchSize       int
	quizReviewThreshold int
	quizReviewCooldown  int

	serveAddr        string
	serveCORSOrigins []string

	showAll bool

	setAppend bool

	importLimit   int
	importReplace bool

	resultsLabel string
	resultsSince string
	resultsLast  int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "azdrill",
		Short:         "A-Z memorization quiz",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runQuizCmd,
	}

	rootCmd.PersistentFlags().StringVar(&storeWorkbook, "workbook", config.DefaultWorkbookPath(), "path to the xlsx workbook")
	rootCmd.PersistentFlags().StringVar(&storeSheet, "sheet", "", "worksheet to quiz on (default: first worksheet)")
	rootCmd.PersistentFlags().StringVar(&storeDB, "db", config.DefaultDBPath(), "path to the SQLite results database")
	rootCmd.PersistentFlags().StringVar(&storeResults, "results", defaultResults, "where results are recorded (db or sheet)")
	addQuizFlags(rootCmd)

	quizCmd := &cobra.Command{
		Use:   "quiz",
		Short: "Run the terminal quiz",
		Args:  cobra.NoArgs,
		RunE:  runQuizCmd,
	}
	addQuizFlags(quizCmd)

	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newSetCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSheetsCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addQuizFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&quizMode, "mode", "", "skip stage selection: all, practice, quiz or final")
	addSessionFlags(cmd)
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&quizBatchSize, "batch-size", defaultBatchSize, "items per practice page")
	cmd.Flags().IntVar(&quizReviewThreshold, "review-threshold", defaultReviewThreshold, "consecutive misses before the full list is shown")
	cmd.Flags().IntVar(&quizReviewCooldown, "review-cooldown", defaultReviewCooldown, "seconds answers stay disabled after a review (0 disables)")
}

// resolveConfig merges flags, environment, .env and the config file.
// Flags set on the command line always win.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return model.Config{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnv(&fileCfg)

	applyStringConfig(cmd, "workbook", &storeWorkbook, fileCfg.Store.Workbook)
	applyStringConfig(cmd, "sheet", &storeSheet, fileCfg.Store.Sheet)
	applyStringConfig(cmd, "db", &storeDB, fileCfg.Store.DB)
	applyStringConfig(cmd, "results", &storeResults, fileCfg.Store.Results)
	applyIntConfig(cmd, "batch-size", &quizBatchSize, fileCfg.Quiz.BatchSize)
	applyIntConfig(cmd, "review-threshold", &quizReviewThreshold, fileCfg.Quiz.ReviewThreshold)
	applyIntConfig(cmd, "review-cooldown", &quizReviewCooldown, fileCfg.Quiz.ReviewCooldown)
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Web.Addr)
	applyStringSliceConfig(cmd, "cors-origin", &serveCORSOrigins, fileCfg.Web.CORSOrigins)

	cfg := model.Config{
		Workbook:        expandHome(storeWorkbook),
		Sheet:           strings.TrimSpace(storeSheet),
		DBPath:          expandHome(storeDB),
		Results:         strings.ToLower(strings.TrimSpace(storeResults)),
		BatchSize:       quizBatchSize,
		ReviewThreshold: quizReviewThreshold,
		ReviewCooldown:  time.Duration(quizReviewCooldown) * time.Second,
		WebAddr:         serveAddr,
		CORSOrigins:     serveCORSOrigins,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// backend bundles the item store with the configured results log.
type backend struct {
	workbook *sheet.Workbook
	sink     quiz.ResultsSink
	lister   stats.ResultLister
	source   stats.ResultSource
	db       *store.Store
}

func openBackend(cfg model.Config) (*backend, error) {
	wb, err := sheet.Open(cfg.Workbook, cfg.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	b := &backend{workbook: wb}
	switch cfg.Results {
	case resultsSheet:
		b.sink = wb
		b.source = wb
		b.lister = stats.Filtered(wb)
	default:
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		b.db = st
		b.sink = st
		b.source = st
		b.lister = st
	}
	return b, nil
}

func (b *backend) Close() {
	if b.db == nil {
		return
	}
	if cerr := b.db.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func (b *backend) sessionOptions(cfg model.Config) quiz.Options {
	opts := quiz.OptionsFromConfig(cfg)
	opts.Label = b.workbook.Sheet()
	return opts
}

func withBackend(cmd *cobra.Command, fn func(cfg model.Config, b *backend) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(cfg, b)
}

func runQuizCmd(cmd *cobra.Command, _ []string) error {
	var mode model.Mode
	if strings.TrimSpace(quizMode) != "" {
		parsed, err := model.ParseMode(quizMode)
		if err != nil {
			return fmt.Errorf("invalid --mode value: %w", err)
		}
		mode = parsed
	}
	return withBackend(cmd, func(cfg model.Config, b *backend) error {
		opts := b.sessionOptions(cfg)
		start := func(ctx context.Context) (*quiz.Session, error) {
			return quiz.Start(ctx, b.workbook, b.sink, opts)
		}
		program := tea.NewProgram(tui.NewModel(start, mode), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the quiz over a JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	addSessionFlags(cmd)
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd, func(cfg model.Config, b *backend) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		srv := web.NewServer(web.Deps{
			Items:       b.workbook,
			Catalog:     b.workbook,
			Sink:        b.sink,
			Results:     b.source,
			Options:     b.sessionOptions(cfg),
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("serving quiz", "workbook", b.workbook.Path(), "sheet", b.workbook.Sheet(), "results", cfg.Results)
		if err := srv.ListenAndServe(ctx, cfg.WebAddr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the values of the active worksheet",
		Args:  cobra.NoArgs,
		RunE:  runShowCmd,
	}
	cmd.Flags().BoolVar(&showAll, "all", false, "include keys without values")
	return cmd
}

func runShowCmd(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		m, err := b.workbook.Load(cmd.Context())
		if err != nil {
			return err
		}
		return writeMapping(cmd.OutOrStdout(), m, showAll)
	})
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE...",
		Short: "Set the values of a key",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSetCmd,
	}
	cmd.Flags().BoolVar(&setAppend, "append", false, "append to existing values instead of replacing them")
	return cmd
}

func runSetCmd(cmd *cobra.Command, args []string) error {
	key, ok := model.ParseKey(args[0])
	if !ok {
		return fmt.Errorf("invalid key %q (expected A-Z)", args[0])
	}
	var values []string
	for _, arg := range args[1:] {
		values = append(values, abc.SplitValues(arg)...)
	}
	if len(values) == 0 {
		return fmt.Errorf("no values given for %s", key)
	}
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		ctx := cmd.Context()
		m, err := b.workbook.Load(ctx)
		if err != nil {
			return err
		}
		if setAppend {
			m = abc.Merge(m, model.Mapping{key: values})
		} else {
			m[key] = values
		}
		if err := b.workbook.Save(ctx, m); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, abc.JoinValues(m[key]))
		return err
	})
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear KEY...",
		Short: "Remove all values of the given keys",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClearCmd,
	}
}

func runClearCmd(cmd *cobra.Command, args []string) error {
	keys := make([]model.Key, 0, len(args))
	for _, arg := range args {
		key, ok := model.ParseKey(arg)
		if !ok {
			return fmt.Errorf("invalid key %q (expected A-Z)", arg)
		}
		keys = append(keys, key)
	}
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		ctx := cmd.Context()
		m, err := b.workbook.Load(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			delete(m, key)
		}
		return b.workbook.Save(ctx, m)
	})
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Group a newline-separated name list by initial into the active worksheet",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().IntVar(&importLimit, "limit", 0, "maximum values per key (0 keeps all)")
	cmd.Flags().BoolVar(&importReplace, "replace", false, "replace existing values instead of merging")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	if importLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	names, err := abc.LoadNames(args[0])
	if err != nil {
		return fmt.Errorf("failed to load names: %w", err)
	}
	grouped := abc.Group(names, importLimit)
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		ctx := cmd.Context()
		m := grouped
		if !importReplace {
			existing, err := b.workbook.Load(ctx)
			if err != nil {
				return err
			}
			m = abc.Merge(existing, grouped)
		}
		if err := b.workbook.Save(ctx, m); err != nil {
			return err
		}
		logErrf("Imported %d names into %q\n", countValues(grouped), b.workbook.Sheet())
		return nil
	})
}

func newSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List and manage worksheets",
		Args:  cobra.NoArgs,
		RunE:  runSheetsListCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List worksheets",
		Args:  cobra.NoArgs,
		RunE:  runSheetsListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "use NAME",
		Short: "Create a worksheet if needed and show how to select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ model.Config, b *backend) error {
				if err := b.workbook.Use(args[0]); err != nil {
					return err
				}
				logErrf("Worksheet %q is ready. Select it with --sheet %q, %s, or sheet in %s\n",
					args[0], args[0], config.EnvSheet, config.DefaultConfigPath())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename FROM TO",
		Short: "Rename a worksheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ model.Config, b *backend) error {
				return b.workbook.Rename(args[0], args[1])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a worksheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ model.Config, b *backend) error {
				return b.workbook.Delete(args[0])
			})
		},
	})
	return cmd
}

func runSheetsListCmd(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		sheets, err := b.workbook.Sheets()
		if err != nil {
			return err
		}
		active := b.workbook.Sheet()
		color := render.UseColor(cmd.OutOrStdout())
		for _, name := range sheets {
			line := "  " + name
			if name == active {
				line = render.Bold("* "+name, color)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	})
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List recorded completions",
		Args:  cobra.NoArgs,
		RunE:  runResultsCmd,
	}
	addResultFilterFlags(cmd)
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize completions per worksheet",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	addResultFilterFlags(cmd)
	return cmd
}

func addResultFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&resultsLabel, "label", "", "worksheet filter")
	cmd.Flags().StringVar(&resultsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&resultsLast, "last", 0, "limit to last N completions")
}

func resultFilter() (store.Filter, error) {
	if resultsLast < 0 {
		return store.Filter{}, fmt.Errorf("--last must be >= 0")
	}
	filter := store.Filter{Label: resultsLabel, Last: resultsLast}
	if resultsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", resultsSince, time.Local)
		if err != nil {
			return store.Filter{}, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func loadReport(cmd *cobra.Command, fn func(report stats.Report) error) error {
	filter, err := resultFilter()
	if err != nil {
		return err
	}
	return withBackend(cmd, func(_ model.Config, b *backend) error {
		report, err := stats.BuildReport(cmd.Context(), b.lister, filter, time.Now())
		if err != nil {
			return fmt.Errorf("failed to load results: %w", err)
		}
		return fn(report)
	})
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	return loadReport(cmd, func(report stats.Report) error {
		if len(report.Entries) == 0 {
			logErrln("No results recorded yet.")
			return nil
		}
		labelWidth := max(12, render.TerminalWidth()-40)
		table := render.NewTable("Recorded", "Worksheet", "Status")
		for _, entry := range report.Entries {
			table.Append(
				entry.RecordedAt.Format("2006-01-02 15:04"),
				render.Truncate(entry.Label, labelWidth),
				entry.Status,
			)
		}
		_, err := table.WriteTo(cmd.OutOrStdout())
		return err
	})
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	return loadReport(cmd, func(report stats.Report) error {
		if len(report.Labels) == 0 {
			logErrln("No results recorded yet.")
			return nil
		}
		table := render.NewTable("Worksheet", "Completions", "Days", "First", "Last").AlignRight(1, 2)
		for _, sum := range report.Labels {
			table.Append(
				sum.Label,
				strconv.Itoa(sum.Completions),
				strconv.Itoa(sum.ActiveDays),
				sum.First.Format("2006-01-02"),
				sum.Last.Format("2006-01-02"),
			)
		}
		out := cmd.OutOrStdout()
		if _, err := table.WriteTo(out); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "\nCurrent streak: %d day(s)\n", report.Streak); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	})
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func writeMapping(w io.Writer, m model.Mapping, all bool) error {
	width := max(20, render.TerminalWidth()-8)
	table := render.NewTable("Key", "Values")
	for _, key := range model.Keys() {
		values := m[key]
		if len(values) == 0 && !all {
			continue
		}
		table.Append(string(key), render.Truncate(abc.JoinValues(values), width))
	}
	if table.Len() == 0 {
		logErrln("No values yet. Add some with: azdrill set KEY VALUE...")
		return nil
	}
	_, err := table.WriteTo(w)
	return err
}

func countValues(m model.Mapping) int {
	total := 0
	for _, values := range m {
		total += len(values)
	}
	return total
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# azdrill configuration
# Uncomment a value to enable it. CLI flags and %s, %s, %s override config values.

[store]
# workbook = %q
# sheet = "Sheet1"          # Worksheet to quiz on (default: first worksheet)
# db = %q
# results = %q              # Where results are recorded: db or sheet

[quiz]
# batch-size = %d           # Items per practice page
# review-threshold = %d     # Consecutive misses before the full list is shown
# review-cooldown = %d      # Seconds answers stay disabled after a review

[web]
# addr = %q
# cors-origins = ["http://localhost:3000"]
`,
		config.EnvWorkbook,
		config.EnvSheet,
		config.EnvDB,
		config.DefaultWorkbookPath(),
		config.DefaultDBPath(),
		defaultResults,
		defaultBatchSize,
		defaultReviewThreshold,
		defaultReviewCooldown,
		defaultAddr,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Workbook == "" {
		return fmt.Errorf("--workbook must not be empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("--batch-size must be > 0")
	}
	if cfg.ReviewThreshold <= 0 {
		return fmt.Errorf("--review-threshold must be > 0")
	}
	if cfg.ReviewCooldown < 0 {
		return fmt.Errorf("--review-cooldown must be >= 0")
	}
	switch cfg.Results {
	case resultsDB:
		if cfg.DBPath == "" {
			return fmt.Errorf("--db must not be empty")
		}
	case resultsSheet:
	default:
		return fmt.Errorf("--results must be %q or %q", resultsDB, resultsSheet)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
