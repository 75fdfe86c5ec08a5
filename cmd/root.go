package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/moodlesec/moodlescan/cmd/internal/display"
	"github.com/moodlesec/moodlescan/internal/config"
	"github.com/moodlesec/moodlescan/internal/logger"
	"github.com/moodlesec/moodlescan/internal/telemetry"
	"github.com/moodlesec/moodlescan/pkg/auth/common"
	"github.com/moodlesec/moodlescan/pkg/auth/moodle"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "moodlescan [target]",
	Short: "Moodle authentication vulnerability scanner",
	Long: `Moodlescan probes a Moodle installation for known authentication
weaknesses: default credentials, the CVE-2023-46806 OAuth2 bypass, SQL
injection in the login form, password-reset user enumeration, Host header
bypasses, CSRF token weaknesses and session fixation.

USAGE:
  moodlescan https://lms.example.com
  moodlescan https://lms.example.com --username admin --password secret
  moodlescan https://lms.example.com --version-hint 4.1.3 --output json

All requests go to the single target you name. Only scan systems you are
authorized to test.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.Flags()
	flags.String("username", "", "username for authenticated checks")
	flags.String("password", "", "password for authenticated checks")
	flags.Duration("timeout", 30*time.Second, "per-request timeout")
	flags.String("proxy", "", "proxy URL for all requests")
	flags.StringToString("cookie", nil, "cookie to seed the session with (name=value, repeatable)")
	flags.Duration("delay", 0, "delay applied before every outbound request")
	flags.String("user-agent", "", "override the User-Agent header")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	flags.String("version-hint", "", "known Moodle version, used to guide version-dependent checks")
	flags.String("output", "pretty", "output format: pretty, json or yaml")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
	flags.Bool("telemetry", false, "enable OTLP trace export")
	flags.String("telemetry-endpoint", "localhost:4317", "OTLP collector endpoint")

	viper.BindPFlag("scanner.username", flags.Lookup("username"))
	viper.BindPFlag("scanner.password", flags.Lookup("password"))
	viper.BindPFlag("scanner.timeout", flags.Lookup("timeout"))
	viper.BindPFlag("scanner.proxy", flags.Lookup("proxy"))
	viper.BindPFlag("scanner.cookies", flags.Lookup("cookie"))
	viper.BindPFlag("scanner.delay", flags.Lookup("delay"))
	viper.BindPFlag("scanner.user_agent", flags.Lookup("user-agent"))
	viper.BindPFlag("scanner.version_hint", flags.Lookup("version-hint"))
	viper.BindPFlag("logger.level", flags.Lookup("log-level"))
	viper.BindPFlag("logger.format", flags.Lookup("log-format"))
	viper.BindPFlag("telemetry.enabled", flags.Lookup("telemetry"))
	viper.BindPFlag("telemetry.endpoint", flags.Lookup("telemetry-endpoint"))
}

func initConfig() {
	viper.SetEnvPrefix("MOODLESCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_paths", []string{"stderr"})
	viper.SetDefault("telemetry.service_name", "moodlescan")
	viper.SetDefault("telemetry.exporter_type", "otlp")
	viper.SetDefault("telemetry.sample_rate", 1.0)
	viper.SetDefault("scanner.timeout", 30*time.Second)
	viper.SetDefault("scanner.verify_ssl", true)

	cfg = config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}

// scanResult is the report envelope emitted by the CLI.
type scanResult struct {
	ScanID     string         `json:"scan_id" yaml:"scan_id"`
	Target     string         `json:"target" yaml:"target"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Report     *common.Report `json:"report" yaml:"report"`
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	insecure, _ := cmd.Flags().GetBool("insecure")
	if insecure {
		cfg.Scanner.VerifySSL = false
	}

	var err error
	log, err = logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	scanID := uuid.New().String()
	scanLog := log.WithComponent("auth").WithTarget(target).WithScanID(scanID)

	scanner, err := moodle.NewScanner(target, moodle.Config{
		Username:  cfg.Scanner.Username,
		Password:  cfg.Scanner.Password,
		Timeout:   cfg.Scanner.Timeout,
		Proxy:     cfg.Scanner.Proxy,
		Cookies:   cfg.Scanner.Cookies,
		Delay:     cfg.Scanner.Delay,
		UserAgent: cfg.Scanner.UserAgent,
		VerifySSL: cfg.Scanner.VerifySSL,
	}, scanLog)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	if cfg.Scanner.VersionHint != "" {
		scanner.SetVersionInfo(&common.VersionInfo{Version: cfg.Scanner.VersionHint})
	}

	ctx, span := tel.StartSpan(ctx, "moodlescan.run")
	started := time.Now()
	report := scanner.Run(ctx)
	finished := time.Now()
	span.End()

	tel.RecordProbe(ctx, "auth", finished.Sub(started))
	for _, finding := range report.Vulnerabilities {
		tel.RecordFinding(ctx, string(finding.Severity))
		scanLog.LogVulnerability(ctx, finding.Title, string(finding.Severity))
	}

	result := &scanResult{
		ScanID:     scanID,
		Target:     scanner.Target(),
		StartedAt:  started,
		FinishedAt: finished,
		Report:     report,
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(result)
	case "pretty":
		display.RenderReport(result.Target, report)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}
}
