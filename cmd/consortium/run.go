package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dusk-indust/consortium/internal/export"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// consortiumFlags are the configuration flags shared by run and save.
type consortiumFlags struct {
	models       []string
	count        int
	arbiter      string
	threshold    float64
	maxIter      int
	minIter      int
	systemPrompt string
}

func (f *consortiumFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&f.models, "model", "m", nil, "model to include, as name or name:count (repeatable)")
	fs.IntVarP(&f.count, "count", "n", 1, "instances per model when no count is given")
	fs.StringVar(&f.arbiter, "arbiter", "", "model that synthesizes each round (default "+orchestrator.DefaultArbiter+")")
	fs.Float64Var(&f.threshold, "confidence-threshold", 0, "stop once the arbiter is this confident; values above 1 are percentages (default 0.8)")
	fs.IntVar(&f.maxIter, "max-iterations", 0, "maximum number of rounds (default 3)")
	fs.IntVar(&f.minIter, "min-iterations", 0, "minimum number of rounds (default 1)")
	fs.StringVar(&f.systemPrompt, "system", "", "system prompt prepended to every voter prompt")
}

// config builds a Config from the flags. Unset flags stay zero so that
// saved or file defaults can fill them.
func (f *consortiumFlags) config() (orchestrator.Config, error) {
	cfg := orchestrator.Config{
		Arbiter:             f.arbiter,
		ConfidenceThreshold: f.threshold,
		MaxIterations:       f.maxIter,
		MinimumIterations:   f.minIter,
		SystemPrompt:        f.systemPrompt,
	}
	if len(f.models) > 0 {
		models, err := parseModels(f.models, f.count)
		if err != nil {
			return cfg, err
		}
		cfg.Models = models
	}
	return cfg, nil
}

// overlay copies the flags that were set onto base.
func (f *consortiumFlags) overlay(base *orchestrator.Config) error {
	cfg, err := f.config()
	if err != nil {
		return err
	}
	if cfg.Models != nil {
		base.Models = cfg.Models
	}
	if cfg.Arbiter != "" {
		base.Arbiter = cfg.Arbiter
	}
	if cfg.ConfidenceThreshold != 0 {
		base.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.MaxIterations != 0 {
		base.MaxIterations = cfg.MaxIterations
	}
	if cfg.MinimumIterations != 0 {
		base.MinimumIterations = cfg.MinimumIterations
	}
	if cfg.SystemPrompt != "" {
		base.SystemPrompt = cfg.SystemPrompt
	}
	return nil
}

// parseModels turns "name" and "name:count" specs into instance counts.
// A suffix that is not a number is part of the model name, so ids such as
// "ollama:llama3" keep working. Repeated models add up.
func parseModels(specs []string, count int) (map[string]int, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", count)
	}
	models := make(map[string]int, len(specs))
	for _, spec := range specs {
		name, n := strings.TrimSpace(spec), count
		if i := strings.LastIndexByte(name, ':'); i >= 0 {
			if v, err := strconv.Atoi(name[i+1:]); err == nil {
				if v < 1 {
					return nil, fmt.Errorf("model %q: count must be at least 1", spec)
				}
				name, n = name[:i], v
			}
		}
		if name == "" {
			return nil, fmt.Errorf("model %q: empty name", spec)
		}
		models[name] += n
	}
	return models, nil
}

// readPrompt joins the positional prompt with piped stdin. Either may be
// empty, but not both.
func readPrompt(args []string, in io.Reader, useStdin, tty bool) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if useStdin && !tty && in != nil {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if piped := strings.TrimSpace(string(data)); piped != "" {
			if text == "" {
				text = piped
			} else {
				text = text + "\n\n" + piped
			}
		}
	}
	if text == "" {
		return "", errors.New("no prompt provided and no input from stdin")
	}
	return text, nil
}

func (c *cli) runCmd() *cobra.Command {
	var (
		flags      consortiumFlags
		consortium string
		output     string
		useStdin   bool
		noStdin    bool
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a prompt through a consortium and print the synthesis",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readPrompt(args, c.in, useStdin && !noStdin, c.stdinTTY())
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var cfg orchestrator.Config
			if consortium != "" {
				if cfg, err = orchestrator.LoadConfig(cmd.Context(), a.store, consortium); err != nil {
					return err
				}
			}
			if err := flags.overlay(&cfg); err != nil {
				return err
			}
			a.resolve(&cfg)

			o, err := orchestrator.New(cfg, a.inv, a.prompts, a.orchestratorOptions()...)
			if err != nil {
				return err
			}
			res, err := o.Run(cmd.Context(), text)
			if err != nil {
				return err
			}

			if output != "" {
				if err := export.WriteFile(output, res); err != nil {
					return err
				}
			}
			printResult(cmd.OutOrStdout(), res, raw)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&consortium, "consortium", "", "start from a saved consortium configuration")
	cmd.Flags().StringVar(&output, "output", "", "save the full result to this JSON file")
	cmd.Flags().BoolVar(&useStdin, "stdin", true, "append piped stdin to the prompt")
	cmd.Flags().BoolVar(&noStdin, "no-stdin", false, "ignore stdin")
	cmd.Flags().BoolVar(&raw, "raw", false, "also print every model's final-round response")
	return cmd
}
