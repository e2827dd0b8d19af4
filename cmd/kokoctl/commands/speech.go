package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokotools/kokoctl/cmd/kokoctl/internal/config"
	"github.com/kokotools/kokoctl/pkg/cli"
	"github.com/kokotools/kokoctl/pkg/kokoro"
)

// KokoroConfig is the per-context kokoro.yaml schema.
type KokoroConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	DefaultVoice string `yaml:"default_voice"`
	MaxRetries   int    `yaml:"max_retries"`
}

// loadKokoroConfig loads kokoro.yaml from the resolved context directory.
// A missing context or config file is not an error: the server runs
// unauthenticated on localhost by default, so built-in defaults suffice.
func loadKokoroConfig() (*KokoroConfig, error) {
	contextDir, err := resolveContextDir()
	if err != nil {
		return nil, err
	}
	if contextDir == "" {
		return &KokoroConfig{}, nil
	}
	svc, err := config.LoadService[KokoroConfig](contextDir, "kokoro")
	if err != nil {
		printVerbose("no kokoro.yaml in context, using defaults")
		return &KokoroConfig{}, nil
	}
	return svc, nil
}

// createClient creates a Kokoro SDK client from the service config.
func createClient() (*kokoro.Client, *KokoroConfig, error) {
	svc, err := loadKokoroConfig()
	if err != nil {
		return nil, nil, err
	}

	apiKey := svc.APIKey
	if apiKey == "" {
		// The server checks for presence only, not validity.
		apiKey = "any"
	}

	var opts []kokoro.Option
	if svc.BaseURL != "" {
		opts = append(opts, kokoro.WithBaseURL(svc.BaseURL))
	}
	if svc.MaxRetries > 0 {
		opts = append(opts, kokoro.WithRetry(svc.MaxRetries))
	}
	client := kokoro.NewClient(apiKey, opts...)
	printVerbose("Server: %s", client.BaseURL())
	return client, svc, nil
}

var speechCmd = &cobra.Command{
	Use:   "speech",
	Short: "Speech synthesis against a Kokoro server",
	Long: `Speech synthesis (TTS) via the OpenAI-compatible endpoint.

Example request file (speech.yaml):
  model: tts-1
  input: Hello, this is a test message.
  voice: af_sky
  response_format: mp3
  speed: 1.0

Examples:
  kokoctl speech synthesize -f speech.yaml -o output.mp3
  kokoctl speech synthesize --input "Hello there" --voice af_sky -o hello.wav --format wav
  kokoctl speech voices
  kokoctl speech models
  kokoctl speech ping`,
}

// Flags for 'speech synthesize' when no request file is given.
var (
	speechInput   string
	speechVoice   string
	speechModel   string
	speechFormat  string
	speechSpeed   float64
	speechSilence int
)

var speechSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize speech from text",
	Long: `Synthesize speech from text.

The request comes either from a YAML/JSON file (-f) or from flags.
Audio is written to the file given with -o.

Examples:
  kokoctl speech synthesize -f speech.yaml -o output.mp3
  kokoctl speech synthesize --input "Hello there" -o hello.wav --format wav
  kokoctl speech synthesize --input "Hallo" --voice af_nicole --speed 1.2 -o out.mp3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req kokoro.SpeechRequest
		if inputFile != "" {
			if err := cli.LoadRequest(inputFile, &req); err != nil {
				return err
			}
		}

		// Flags override the request file.
		if speechInput != "" {
			req.Input = speechInput
		}
		if speechVoice != "" {
			req.Voice = speechVoice
		}
		if speechModel != "" {
			req.Model = speechModel
		}
		if speechFormat != "" {
			req.ResponseFormat = kokoro.AudioFormat(speechFormat)
		}
		if speechSpeed != 0 {
			req.Speed = speechSpeed
		}
		if cmd.Flags().Changed("silence") {
			req.InitialSilence = &speechSilence
		}

		if req.Input == "" {
			return fmt.Errorf("no input text; use -f or --input")
		}
		if outputFile == "" {
			return fmt.Errorf("output file is required for audio, use -o flag")
		}

		client, svc, err := createClient()
		if err != nil {
			return err
		}
		if req.Model == "" {
			req.Model = svc.DefaultModel
			if req.Model == "" {
				req.Model = kokoro.ModelTTS1
			}
		}
		if req.Voice == "" && svc.DefaultVoice != "" {
			req.Voice = svc.DefaultVoice
		}

		printVerbose("Model: %s", req.Model)
		printVerbose("Voice: %s", req.Voice)
		printVerbose("Text length: %d characters", len(req.Input))

		reqCtx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		resp, err := client.Speech.Synthesize(reqCtx, &req)
		if err != nil {
			return fmt.Errorf("speech synthesis failed: %w", err)
		}

		if err := cli.OutputBytes(resp.Audio, outputFile); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
		printSuccess("Audio saved to: %s (%s, %s)", outputFile, cli.FormatBytesInt(len(resp.Audio)), resp.ContentType)

		if outputJSON {
			return outputResult(map[string]any{
				"audio_size":   len(resp.Audio),
				"content_type": resp.ContentType,
				"output_file":  outputFile,
			}, "", true)
		}
		return nil
	},
}

var speechVoicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voices loaded on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := createClient()
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		voices, err := client.Voice.List(reqCtx)
		if err != nil {
			return fmt.Errorf("list voices failed: %w", err)
		}

		if outputJSON {
			return outputResult(map[string]any{"voices": voices}, outputFile, true)
		}
		for _, v := range voices {
			printInfo("%s", v)
		}
		return nil
	},
}

var speechModelsCmd = &cobra.Command{
	Use:   "models [id]",
	Short: "List models advertised by the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := createClient()
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if len(args) == 1 {
			model, err := client.Models.Get(reqCtx, args[0])
			if err != nil {
				return fmt.Errorf("get model failed: %w", err)
			}
			return outputResult(model, outputFile, outputJSON)
		}

		list, err := client.Models.List(reqCtx)
		if err != nil {
			return fmt.Errorf("list models failed: %w", err)
		}
		return outputResult(list, outputFile, outputJSON)
	},
}

var speechProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the speech endpoint and print its JSON reply",
	Long: `Send a synthesis request and print the reply as JSON instead of
saving audio. Useful against debug builds of the server that echo the
parsed request back.

Examples:
  kokoctl speech probe -f speech.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireInputFile(); err != nil {
			return err
		}

		var req kokoro.SpeechRequest
		if err := cli.LoadRequest(inputFile, &req); err != nil {
			return err
		}

		client, _, err := createClient()
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reply, err := client.Speech.Probe(reqCtx, &req)
		if err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}
		return outputResult(reply, outputFile, outputJSON)
	},
}

var speechPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := createClient()
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		start := time.Now()
		if err := client.Health(reqCtx); err != nil {
			return fmt.Errorf("server not reachable: %w", err)
		}
		printSuccess("%s is up (%s)", client.BaseURL(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	speechSynthesizeCmd.Flags().StringVar(&speechInput, "input", "", "text to synthesize")
	speechSynthesizeCmd.Flags().StringVar(&speechVoice, "voice", "", "voice id (e.g. af_sky)")
	speechSynthesizeCmd.Flags().StringVar(&speechModel, "model", "", "model id (accepted for compatibility)")
	speechSynthesizeCmd.Flags().StringVar(&speechFormat, "format", "", "audio format (mp3, wav, pcm)")
	speechSynthesizeCmd.Flags().Float64Var(&speechSpeed, "speed", 0, "playback speed multiplier")
	speechSynthesizeCmd.Flags().IntVar(&speechSilence, "silence", 0, "initial silence in samples")

	speechCmd.AddCommand(speechSynthesizeCmd)
	speechCmd.AddCommand(speechVoicesCmd)
	speechCmd.AddCommand(speechModelsCmd)
	speechCmd.AddCommand(speechProbeCmd)
	speechCmd.AddCommand(speechPingCmd)

	rootCmd.AddCommand(speechCmd)
}
