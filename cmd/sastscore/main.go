// Package main is the entry point for the sastscore CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/su1ph3r/sastscore/internal/corpus"
	"github.com/su1ph3r/sastscore/internal/engine"
	"github.com/su1ph3r/sastscore/internal/history"
	"github.com/su1ph3r/sastscore/internal/logging"
	"github.com/su1ph3r/sastscore/internal/reporter"
	"github.com/su1ph3r/sastscore/pkg/types"
)

var (
	version = "0.1.0"
	cfgFile string
	config  *types.Config
)

// exitCodeError carries a process exit code through cobra
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sastscore",
	Short: "sastscore - score static analysis results against a labeled test suite",
	Long: `sastscore reads the XML result documents a static analysis tool produced
for a labeled test suite, matches each finding against the weakness
identifiers accepted for its category, and reports per-category precision
and recall, suite averages and a pass/fail verdict.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score tool results described by a corpus manifest",
	RunE:  runScore,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and corpus manifest without scoring",
	RunE:  runValidate,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View sastscore configuration settings`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(viper.Get(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sastscore.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	// Score command flags
	scoreCmd.Flags().StringP("manifest", "m", "", "Corpus manifest (YAML)")
	scoreCmd.Flags().StringP("output", "o", "", "Output file path (reports print to stdout if not specified)")
	scoreCmd.Flags().StringP("format", "f", "", "Output formats, comma-separated (text, json, markdown)")
	scoreCmd.Flags().Float64("threshold", 0, "Pass threshold for the overall score (0-1)")
	scoreCmd.Flags().String("language", "", "Suite language when the manifest does not set one (c, cpp, java)")
	scoreCmd.Flags().String("fragment-mode", "", "Identifier fragment comparison (set, multiset)")
	scoreCmd.Flags().Bool("no-hits", false, "Omit per-hit rows from reports")
	scoreCmd.Flags().String("history", "", "Append the run to a JSONL history file and compare with the previous run")
	scoreCmd.Flags().Bool("fail-exit", false, "Exit with status 2 when the verdict is FAIL")
	scoreCmd.Flags().Bool("verbose", false, "Verbose output")
	_ = scoreCmd.MarkFlagRequired("manifest")

	validateCmd.Flags().StringP("manifest", "m", "", "Corpus manifest (YAML)")
	_ = validateCmd.MarkFlagRequired("manifest")

	// Add commands
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".sastscore")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SASTSCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			printWarning("Failed to read config: %v", err)
		}
	}

	config = types.DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		printWarning("Failed to load config: %v (using defaults)", err)
		config = types.DefaultConfig()
	}
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printWarning("\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	updateConfigFromFlags(cmd)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	statusOut = color.Output
	if config.Output.File == "" {
		statusOut = color.Error
	}

	logger, err := logging.New(config.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	manifestPath, _ := cmd.Flags().GetString("manifest")
	manifest, err := corpus.Load(manifestPath)
	if err != nil {
		return err
	}

	printBanner()
	printInfo("Manifest: %s (%d projects)", manifestPath, len(manifest.Projects))
	printInfo("Tool: %s", config.Tool.Name)

	eng, err := engine.New(*config, manifest, logger)
	if err != nil {
		return err
	}

	printInfo("Scoring...")
	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	printSummary(result, verbose)

	if config.Output.History != "" {
		if err := recordHistory(result); err != nil {
			printWarning("History not updated: %v", err)
		}
	}

	noHits, _ := cmd.Flags().GetBool("no-hits")
	if err := writeReports(result, noHits); err != nil {
		return err
	}

	failExit, _ := cmd.Flags().GetBool("fail-exit")
	if failExit && result.Verdict == types.VerdictFail {
		return &exitCodeError{code: 2, msg: "verdict FAIL"}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	updateConfigFromFlags(cmd)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	manifestPath, _ := cmd.Flags().GetString("manifest")
	manifest, err := corpus.Load(manifestPath)
	if err != nil {
		return err
	}

	eng, err := engine.New(*config, manifest, nil)
	if err != nil {
		return err
	}
	if err := eng.Validate(); err != nil {
		return err
	}

	missing := 0
	for _, p := range manifest.Projects {
		if err := types.ValidateInputFile(p.ResultFile); err != nil {
			printWarning("%s: %v", p.Name, err)
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d result files are missing", missing)
	}

	printSuccess("Configuration and manifest are valid (%d projects, %d categories)",
		len(manifest.Projects), len(manifest.AcceptedIDs))
	return nil
}

func updateConfigFromFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("format") {
		config.Output.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		config.Output.File, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("threshold") {
		config.Scoring.Threshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("language") {
		config.Suite.Language, _ = cmd.Flags().GetString("language")
	}
	if cmd.Flags().Changed("fragment-mode") {
		config.Scoring.FragmentMode, _ = cmd.Flags().GetString("fragment-mode")
	}
	if cmd.Flags().Changed("history") {
		config.Output.History, _ = cmd.Flags().GetString("history")
	}
	if cmd.Flags().Changed("log-level") {
		config.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		config.Output.NoColor = true
	}
	if config.Output.NoColor {
		color.NoColor = true
	}
}

func writeReports(result *types.SuiteResult, noHits bool) error {
	formats := types.OutputFormats(config.Output.Format)
	if len(formats) == 0 {
		formats = []string{"text"}
	}

	options := reporter.DefaultOptions()
	options.IncludeHits = !noHits
	options.NoColor = config.Output.NoColor
	options.Version = version

	output := config.Output.File
	if output == "" {
		for _, format := range formats {
			r, err := reporter.NewReporter(format, options)
			if err != nil {
				return err
			}
			if err := r.Write(result, os.Stdout); err != nil {
				return fmt.Errorf("failed to write %s report: %w", r.Format(), err)
			}
		}
		return nil
	}

	output, err := homedir.Expand(output)
	if err != nil {
		return fmt.Errorf("failed to expand output path: %w", err)
	}

	if len(formats) == 1 {
		r, err := reporter.NewReporter(formats[0], options)
		if err != nil {
			return err
		}
		// files never carry color codes
		if r.Format() == "text" {
			options.NoColor = true
			r = reporter.NewTextReporter(options)
		}
		if err := reporter.WriteToFile(r, result, output); err != nil {
			return err
		}
		printSuccess("Report written to %s", output)
		return nil
	}

	options.NoColor = true
	mr, err := reporter.NewMultiReporter(formats, options)
	if err != nil {
		return err
	}
	written, err := mr.WriteAll(result, strings.TrimSuffix(output, filepath.Ext(output)))
	for _, f := range written {
		printSuccess("Report written to %s", f)
	}
	return err
}

func recordHistory(result *types.SuiteResult) error {
	tracker, err := history.NewTracker(config.Output.History)
	if err != nil {
		return err
	}

	rec := history.NewRunRecord(result)
	if prev, ok := tracker.Last(); ok {
		printComparison(history.Compare(prev, rec))
	}
	if err := tracker.Append(rec); err != nil {
		return err
	}
	if tracker.IsStalled(2) {
		printInfo("Overall score unchanged over the last 3 runs")
	}
	return nil
}
