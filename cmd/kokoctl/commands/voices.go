package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokotools/kokoctl/cmd/kokoctl/internal/config"
	"github.com/kokotools/kokoctl/pkg/cli"
	"github.com/kokotools/kokoctl/pkg/voicebank"
)

// HubConfig is the per-context hub.yaml schema.
type HubConfig struct {
	Mirror     string `yaml:"mirror"`
	MaxRetries int    `yaml:"max_retries"`
}

// loadHubConfig loads hub.yaml from the resolved context directory.
// Missing context or file falls back to the built-in mirror.
func loadHubConfig() (*HubConfig, error) {
	contextDir, err := resolveContextDir()
	if err != nil {
		return nil, err
	}
	if contextDir == "" {
		return &HubConfig{}, nil
	}
	svc, err := config.LoadService[HubConfig](contextDir, "hub")
	if err != nil {
		printVerbose("no hub.yaml in context, using defaults")
		return &HubConfig{}, nil
	}
	return svc, nil
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Manage the voice embedding bank",
	Long: `Manage the voice embedding bank.

The inference server loads voice style embeddings from a single JSON
document (data/voices.json by default). 'voices fetch' builds that
document by downloading the per-voice .pt tensors from a HuggingFace
mirror and decoding them; 'voices list' inspects an existing document.

Examples:
  kokoctl voices fetch -o data/voices.json
  kokoctl voices fetch --voice af_sky --voice af_nicole -o data/voices.json
  kokoctl voices fetch --keep-going -o data/voices.json
  kokoctl voices list -f data/voices.json`,
}

var (
	voicesMirror    string
	voicesSelect    []string
	voicesKeepGoing bool
	voicesNoShape   bool
)

var voicesFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download voice embeddings and write the registry",
	Long: `Download voice embeddings from the hub mirror and write them to a
single compact JSON registry.

Each voice is a torch .pt archive holding one float32 tensor of shape
511x1x256. Downloads happen sequentially; by default the first failure
aborts the run so an existing registry is never replaced by a partial
one. --keep-going skips failed voices instead.

Examples:
  kokoctl voices fetch -o data/voices.json
  kokoctl voices fetch --mirror https://huggingface.co/hexgrad/Kokoro-82M/resolve/main/voices
  kokoctl voices fetch --voice af_sky -o data/voices.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile == "" {
			outputFile = "data/voices.json"
		}

		hub, err := loadHubConfig()
		if err != nil {
			return err
		}

		opts := []voicebank.FetchOption{
			voicebank.WithKeepPartial(voicesKeepGoing),
		}
		switch {
		case voicesMirror != "":
			opts = append(opts, voicebank.WithMirror(voicesMirror))
		case hub.Mirror != "":
			opts = append(opts, voicebank.WithMirror(hub.Mirror))
		}
		if hub.MaxRetries > 0 {
			opts = append(opts, voicebank.WithRetry(hub.MaxRetries))
		}
		if voicesNoShape {
			opts = append(opts, voicebank.WithShape(nil))
		}

		fetcher := voicebank.NewFetcher(opts...)

		voices := voicesSelect
		if len(voices) == 0 {
			voices = voicebank.DefaultVoices
		}
		printVerbose("Fetching %d voices via %s", len(voices), fetcher.URL("<voice>"))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		start := time.Now()
		reg, err := fetcher.FetchAll(ctx, voices)
		if err != nil {
			return fmt.Errorf("fetch voices: %w", err)
		}

		if err := reg.WriteFile(outputFile); err != nil {
			return err
		}

		info, err := os.Stat(outputFile)
		if err != nil {
			return err
		}
		printSuccess("Wrote %d voices to %s (%s) in %s",
			reg.Len(), outputFile, cli.FormatBytes(info.Size()), time.Since(start).Round(time.Second))

		if outputJSON {
			return outputResult(map[string]any{
				"voices":      reg.Voices(),
				"count":       reg.Len(),
				"output_file": outputFile,
				"bytes":       info.Size(),
			}, "", true)
		}
		return nil
	},
}

var voicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List voices in a registry file",
	Long: `List the voices in a registry document, with embedding shapes.

Examples:
  kokoctl voices list -f data/voices.json
  kokoctl voices list -f data/voices.json --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inputFile
		if path == "" {
			path = "data/voices.json"
		}

		reg, err := voicebank.ReadFile(path)
		if err != nil {
			return err
		}

		if outputJSON {
			entries := make([]map[string]any, 0, reg.Len())
			for _, v := range reg.Voices() {
				entries = append(entries, map[string]any{
					"voice": v,
					"shape": reg.Shape(v),
				})
			}
			return outputResult(map[string]any{"voices": entries}, outputFile, true)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VOICE\tSHAPE")
		for _, v := range reg.Voices() {
			dims := make([]string, 0, 3)
			for _, d := range reg.Shape(v) {
				dims = append(dims, fmt.Sprint(d))
			}
			fmt.Fprintf(w, "%s\t%s\n", v, strings.Join(dims, "x"))
		}
		return w.Flush()
	},
}

func init() {
	voicesFetchCmd.Flags().StringVar(&voicesMirror, "mirror", "", "hub mirror base URL")
	voicesFetchCmd.Flags().StringArrayVar(&voicesSelect, "voice", nil, "voice id to fetch (repeatable; default: full set)")
	voicesFetchCmd.Flags().BoolVar(&voicesKeepGoing, "keep-going", false, "skip failed voices instead of aborting")
	voicesFetchCmd.Flags().BoolVar(&voicesNoShape, "no-shape-check", false, "skip the embedding shape check")

	voicesCmd.AddCommand(voicesFetchCmd)
	voicesCmd.AddCommand(voicesListCmd)

	rootCmd.AddCommand(voicesCmd)
}
