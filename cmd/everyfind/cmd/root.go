// Package cmd provides the CLI commands for everyfind.
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/everyfind/everyfind/internal/config"
	"github.com/everyfind/everyfind/internal/logging"
	"github.com/everyfind/everyfind/internal/query"
	"github.com/everyfind/everyfind/internal/report"
	"github.com/everyfind/everyfind/internal/runlog"
	"github.com/everyfind/everyfind/internal/search"
	"github.com/everyfind/everyfind/internal/throttle"
	"github.com/everyfind/everyfind/pkg/version"
)

// searchFlags holds the root command's flag values. Flags only override
// the config file when explicitly set, so zero values here are not
// meaningful on their own.
type searchFlags struct {
	regex        bool
	hex          bool
	minSize      string
	maxSize      string
	noParallel   bool
	workers      int
	contextLines int
	gitignore    bool
	excludeDirs  []string
	excludeFile  string
	writeLog     bool
	debug        bool
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command for the everyfind CLI.
func NewRootCmd() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "everyfind <pattern> [path]",
		Short: "Search file contents under a directory",
		Long: `everyfind searches the contents of every regular file under a
directory for a text, regex, or hex byte pattern. Files are enumerated
recursively with exclusion and size filters, scanned by a parallel
worker pool, and matches are printed as they are found.

The pattern is interpreted as literal text unless --regex or --hex is
given. Hex patterns match raw bytes and work on binary files.`,
		Example: `  # Literal text search under the current directory
  everyfind "connection refused" .

  # Regex search, respecting .gitignore
  everyfind -r 'TODO\(\w+\)' ./src --gitignore

  # Hex byte search in firmware images up to 4 MiB
  everyfind -x deadbeef ./images --max-size 4M`,
		Version:       version.Version,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Setup(flags.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, flags)
		},
	}

	cmd.SetVersionTemplate("everyfind version {{.Version}}\n")

	cmd.Flags().BoolVarP(&flags.regex, "regex", "r", false, "Interpret the pattern as a Go regular expression")
	cmd.Flags().BoolVarP(&flags.hex, "hex", "x", false, "Interpret the pattern as hex bytes (e.g. deadbeef)")
	cmd.MarkFlagsMutuallyExclusive("regex", "hex")

	cmd.Flags().StringVar(&flags.minSize, "min-size", "", "Minimum file size to search (e.g. 1K, 2M)")
	cmd.Flags().StringVar(&flags.maxSize, "max-size", "", "Maximum file size to search (e.g. 10M, 1G)")
	cmd.Flags().BoolVar(&flags.noParallel, "no-parallel", false, "Search files one at a time in enumeration order")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Worker pool size (default: config, then CPU count)")
	cmd.Flags().IntVar(&flags.contextLines, "context", 0, "Context lines before and after each match")
	cmd.Flags().BoolVar(&flags.gitignore, "gitignore", false, "Respect .gitignore rules during enumeration")
	cmd.Flags().StringSliceVar(&flags.excludeDirs, "exclude-dir", nil, "Additional directory names to skip")
	cmd.Flags().StringVar(&flags.excludeFile, "exclude-file", "", "File listing file names to skip, one per line")
	cmd.Flags().BoolVar(&flags.writeLog, "log", false, "Write a timestamped search log in the current directory")

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to stderr")

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// runSearch resolves configuration, compiles the pattern, and drives one
// search run end to end.
func runSearch(cmd *cobra.Command, args []string, flags *searchFlags) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfgPath, err := config.UserConfigPath()
	if err != nil {
		return err
	}
	cfg, created, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(errOut, "created default config at %s\n", cfgPath)
	}

	if cmd.Flags().Changed("context") {
		cfg.Search.ContextLines = flags.contextLines
	}
	if cmd.Flags().Changed("gitignore") {
		cfg.Search.RespectGitignore = flags.gitignore
	}
	if cmd.Flags().Changed("workers") {
		cfg.Performance.Workers = flags.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pattern, err := query.Compile(args[0], patternMode(flags))
	if err != nil {
		return err
	}

	root := cfg.Search.DefaultSearchPath
	if len(args) > 1 {
		root = args[1]
	}

	minSize, maxSize, err := sizeBounds(flags.minSize, flags.maxSize)
	if err != nil {
		return err
	}

	excludeDirs := append(append([]string{}, cfg.Exclude.DefaultDirs...), flags.excludeDirs...)
	excludeFiles := append([]string{}, cfg.Exclude.DefaultFiles...)
	if flags.excludeFile != "" {
		names, err := readExcludeFile(flags.excludeFile)
		if err != nil {
			return err
		}
		excludeFiles = append(excludeFiles, names...)
	}

	rl := runlog.Disabled()
	if flags.writeLog {
		rl, err = runlog.Create(".", time.Now())
		if err != nil {
			return err
		}
	}
	defer rl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := throttle.New(
		cfg.Performance.CPUThreshold,
		time.Duration(cfg.Performance.SampleIntervalMS)*time.Millisecond,
		nil,
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	opts := search.Options{
		Root:             root,
		Pattern:          pattern,
		MinSize:          minSize,
		MaxSize:          maxSize,
		ExcludeDirs:      excludeDirs,
		ExcludeFiles:     excludeFiles,
		RespectGitignore: cfg.Search.RespectGitignore,
		Parallel:         !flags.noParallel,
		Workers:          cfg.WorkerCount(),
		ContextLines:     cfg.Search.ContextLines,
		MaxLineLength:    cfg.Display.MaxLineLength,
		Delay:            time.Duration(cfg.Performance.SearchDelayMS) * time.Millisecond,
		OnSkip:           rl.Skip,
	}

	params := runParams(opts, cfgPath)
	printBanner(out, params)
	rl.Params(params)

	reporter := report.New(out, report.Options{
		Highlight: cfg.Display.HighlightMatches,
		Color:     stdoutIsTerminal(),
	})

	eng := search.New(opts, monitor)
	matches, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	for m := range matches {
		reporter.Record(m)
		rl.Match(m)
	}

	snap := eng.Stats().Snapshot()
	status := monitor.Status()
	reporter.Summary(snap, status)
	rl.Summary(snap, status)
	if rl.Enabled() {
		fmt.Fprintf(out, "search log written to %s\n", rl.Path())
	}
	return nil
}

func patternMode(flags *searchFlags) query.Mode {
	switch {
	case flags.regex:
		return query.ModeRegex
	case flags.hex:
		return query.ModeHex
	default:
		return query.ModeText
	}
}

// sizeBounds parses the size flags. Empty means unbounded: 0 for the
// minimum, -1 for the maximum.
func sizeBounds(minFlag, maxFlag string) (int64, int64, error) {
	var minSize int64
	maxSize := int64(-1)
	if minFlag != "" {
		n, err := config.ParseSize(minFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --min-size: %w", err)
		}
		minSize = clampSize(n)
	}
	if maxFlag != "" {
		n, err := config.ParseSize(maxFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --max-size: %w", err)
		}
		maxSize = clampSize(n)
	}
	if maxSize >= 0 && minSize > maxSize {
		return 0, 0, fmt.Errorf("--min-size %s exceeds --max-size %s", minFlag, maxFlag)
	}
	return minSize, maxSize, nil
}

func clampSize(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

// readExcludeFile loads a newline-separated list of file names to skip.
// Blank lines and lines starting with # are ignored.
func readExcludeFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclude file: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// runParams renders the effective run parameters, shared by the banner
// and the search log header.
func runParams(opts search.Options, cfgPath string) [][2]string {
	sizes := "unbounded"
	switch {
	case opts.MinSize > 0 && opts.MaxSize >= 0:
		sizes = fmt.Sprintf("%s .. %s", config.FormatSize(uint64(opts.MinSize)), config.FormatSize(uint64(opts.MaxSize)))
	case opts.MinSize > 0:
		sizes = fmt.Sprintf(">= %s", config.FormatSize(uint64(opts.MinSize)))
	case opts.MaxSize >= 0:
		sizes = fmt.Sprintf("<= %s", config.FormatSize(uint64(opts.MaxSize)))
	}

	parallel := "off"
	if opts.Parallel {
		parallel = fmt.Sprintf("%d workers", opts.Workers)
	}

	return [][2]string{
		{"pattern", fmt.Sprintf("%s (%s)", opts.Pattern.Raw(), opts.Pattern.Mode())},
		{"path", opts.Root},
		{"sizes", sizes},
		{"parallel", parallel},
		{"gitignore", fmt.Sprintf("%v", opts.RespectGitignore)},
		{"context", fmt.Sprintf("%d", opts.ContextLines)},
		{"config", cfgPath},
	}
}

func printBanner(out io.Writer, params [][2]string) {
	fmt.Fprintf(out, "everyfind %s\n", version.Version)
	for _, p := range params {
		fmt.Fprintf(out, "%-10s %s\n", p[0]+":", p[1])
	}
	fmt.Fprintln(out)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
