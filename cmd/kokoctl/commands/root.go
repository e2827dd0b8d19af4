package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kokotools/kokoctl/cmd/kokoctl/internal/config"
	"github.com/kokotools/kokoctl/pkg/cli"
)

// Flags shared by all subcommands.
var (
	verbose     bool
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
)

// globalConfig is loaded at init time.
var globalConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "kokoctl",
	Short: "CLI for Kokoro TTS servers and the voice hub",
	Long: `kokoctl - command line tooling for Kokoro text-to-speech.

Talks to any server exposing the OpenAI-compatible speech API
(POST /v1/audio/speech) and manages the voice embedding bank
fetched from the HuggingFace hub.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/kokoctl/
  Linux:   ~/.config/kokoctl/
  Windows: %AppData%/kokoctl/

Use 'kokoctl config' to manage contexts and service configurations.

Examples:
  # Synthesize speech against a local server
  kokoctl speech synthesize --input "Hello there" -o hello.mp3

  # Configure a remote server in a named context
  kokoctl config add-context staging
  kokoctl config set staging kokoro base_url https://tts.example.com
  kokoctl -c staging speech synthesize -f request.yaml -o out.wav

  # Build the voice bank used by the inference server
  kokoctl voices fetch -o data/voices.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Deferred so commands that never touch config, like 'version',
		// still work when HOME is unset.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// resolveContextDir returns the active context directory, or empty string
// when no context is configured. Commands fall back to built-in defaults
// in that case rather than failing.
func resolveContextDir() (string, error) {
	cfg, err := GetConfig()
	if err != nil {
		return "", err
	}
	if contextName == "" && cfg.CurrentContext == "" {
		return "", nil
	}
	return cfg.ResolveContext(contextName)
}

// ---------------------------------------------------------------------------
// Helpers shared across subcommands
// ---------------------------------------------------------------------------

func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}

func requireInputFile() error {
	if inputFile == "" {
		return fmt.Errorf("input file is required, use -f flag")
	}
	return nil
}

func outputResult(result any, path string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: path})
}

func printSuccess(format string, args ...any) { cli.PrintSuccess(format, args...) }
func printInfo(format string, args ...any)    { cli.PrintInfo(format, args...) }
