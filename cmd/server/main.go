package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/ycho/youtrack-mcp-server/internal/api"
	"github.com/ycho/youtrack-mcp-server/internal/config"
	"github.com/ycho/youtrack-mcp-server/internal/mcp"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

var (
	version = "1.0.0"

	cfg = config.Load()

	// Report flags
	reportUsers           []string
	reportFrom            string
	reportTo              string
	reportQuery           string
	reportOutput          string
	reportIncludeWeekends bool
	reportIncludeHolidays bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "youtrack-mcp-server",
		Short:   "YouTrack MCP Server - activity search and time reports for AI assistants",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	// Global flags, defaulting to the environment
	rootCmd.PersistentFlags().StringVar(&cfg.YouTrackURL, "youtrack-url", cfg.YouTrackURL, "YouTrack base URL (YOUTRACK_URL)")
	rootCmd.PersistentFlags().IntVar(&cfg.Port, "port", cfg.Port, "Server port for SSE and API modes (PORT)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error (LOG_LEVEL)")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxConcurrency, "concurrency", cfg.MaxConcurrency, "Maximum parallel YouTrack requests per batch (MAX_CONCURRENCY)")
	rootCmd.PersistentFlags().StringVar(&cfg.CalendarFile, "calendar", cfg.CalendarFile, "Holiday calendar JSON file (CALENDAR_FILE)")
	rootCmd.PersistentFlags().IntVar(&cfg.DailyMinutes, "daily-minutes", cfg.DailyMinutes, "Expected minutes per working day (DAILY_MINUTES)")

	// MCP command
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the MCP server in stdio or SSE mode",
		RunE:  runMCP,
	}

	var sseMode bool
	mcpCmd.Flags().BoolVar(&sseMode, "sse", false, "Run in SSE mode instead of stdio")

	// API command
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Start REST API server",
		Long:  "Start the REST API server with Swagger UI at /docs",
		RunE:  runAPI,
	}

	// Report command
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a work item report",
		Long: "Generate a daily expected vs. actual time report from the command line.\n" +
			"The output format follows the --output extension (.csv, .xlsx or .json); without --output JSON is written to stdout.",
		RunE: runReport,
	}
	reportCmd.Flags().StringSliceVar(&reportUsers, "user", []string{"me"}, "User login, full name or 'me' (repeatable)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportQuery, "query", "", "Additional YouTrack issue filter")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (.csv, .xlsx or .json)")
	reportCmd.Flags().BoolVar(&reportIncludeWeekends, "include-weekends", false, "Count weekends as working days")
	reportCmd.Flags().BoolVar(&reportIncludeHolidays, "include-holidays", false, "Count holidays as working days")

	rootCmd.AddCommand(mcpCmd, apiCmd, reportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func loadCalendar() *workreport.Calendar {
	calendar, err := cfg.LoadCalendar()
	if err != nil {
		slog.Warn("Failed to load holiday calendar", "file", cfg.CalendarFile, "error", err)
		return nil
	}
	if calendar != nil {
		slog.Info("Loaded holiday calendar", "file", cfg.CalendarFile,
			"holidays", len(calendar.Holidays), "pre_holidays", len(calendar.PreHolidays))
	}
	return calendar
}

func runMCP(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	sseMode, _ := cmd.Flags().GetBool("sse")

	serverConfig := mcp.Config{
		YouTrackURL:   cfg.YouTrackURL,
		YouTrackToken: cfg.YouTrackToken,
		Port:          cfg.Port,
		SSEMode:       sseMode,
		ClientOptions: cfg.ClientOptions(),
		Settings: mcp.Settings{
			Calendar:       loadCalendar(),
			DailyMinutes:   cfg.DailyMinutes,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	}

	if !sseMode && serverConfig.YouTrackToken == "" {
		return fmt.Errorf("YOUTRACK_TOKEN is required for stdio mode (set via YOUTRACK_TOKEN env var)")
	}

	server := mcp.NewServer(serverConfig)
	return server.Run()
}

func runAPI(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	serverConfig := api.Config{
		YouTrackURL:    cfg.YouTrackURL,
		Port:           cfg.Port,
		CalendarFile:   cfg.CalendarFile,
		DailyMinutes:   cfg.DailyMinutes,
		MaxConcurrency: cfg.MaxConcurrency,
		ClientOptions:  cfg.ClientOptions(),
	}

	server := api.NewServer(serverConfig)
	return server.Run()
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.YouTrackToken == "" {
		return fmt.Errorf("YOUTRACK_TOKEN is required (set via YOUTRACK_TOKEN env var)")
	}

	format := "json"
	if reportOutput != "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(reportOutput)), ".")
	}
	if format != "json" && format != "csv" && format != "xlsx" {
		return fmt.Errorf("unsupported output extension %q (use .csv, .xlsx or .json)", filepath.Ext(reportOutput))
	}

	params := workreport.Params{
		Query:           reportQuery,
		IncludeWeekends: reportIncludeWeekends,
		IncludeHolidays: reportIncludeHolidays,
	}
	var err error
	if reportFrom != "" {
		if params.Start, err = youtrack.ParseInstant(reportFrom, false); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if reportTo != "" {
		if params.End, err = youtrack.ParseInstant(reportTo, true); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := cfg.NewClient(cfg.YouTrackToken)
	logins, err := youtrack.NewResolver(client).ResolveLogins(ctx, reportUsers)
	if err != nil {
		return fmt.Errorf("failed to resolve users: %w", err)
	}
	if format == "csv" && len(logins) != 1 {
		return fmt.Errorf("csv output holds a single user; use .xlsx or .json for %d users", len(logins))
	}

	service := workreport.NewService(client, loadCalendar(), cfg.DailyMinutes)

	bar := newSpinner(fmt.Sprintf("Building report for %s", strings.Join(logins, ", ")))
	results, err := service.GenerateByUser(ctx, logins, params, cfg.MaxConcurrency)
	finishBar(bar)
	if err != nil {
		return err
	}

	var reports []*workreport.Report
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "Failed to build report for %s: %s\n", r.User, r.Error)
			continue
		}
		reports = append(reports, r.Report)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no report could be generated")
	}

	var out io.Writer = os.Stdout
	if reportOutput != "" {
		f, err := os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", reportOutput, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch format {
	case "csv":
		_, err = io.WriteString(out, workreport.GenerateCSV(reports[0]))
	case "xlsx":
		err = workreport.WriteXLSX(out, reports)
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			err = enc.Encode(reports[0])
		} else {
			err = enc.Encode(reports)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if reportOutput != "" {
		fmt.Fprintf(os.Stderr, "Report saved to %s\n", reportOutput)
	}
	for _, r := range reports {
		fmt.Fprintf(os.Stderr, "  %s: %.2fh logged, %.2fh expected, %d invalid day(s)\n",
			r.User, r.Summary.TotalActualHours, r.Summary.TotalExpectedHours, len(r.Summary.InvalidDays))
	}
	return nil
}

func newSpinner(description string) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	_ = bar.RenderBlank()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if bar.IsFinished() {
				return
			}
			_ = bar.Add(1)
		}
	}()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}
