package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"cdoc/internal/annotate"
	"cdoc/internal/config"
	"cdoc/internal/locator"
	"cdoc/internal/pipeline"
	"cdoc/internal/source"
	"cdoc/internal/verify"
)

// Version can be overridden at build time via -ldflags.
var Version = "0.1.0"

// exitOmissions distinguishes a run that finished but left functions
// unannotated from a fatal failure, which exits 1.
const exitOmissions = 2

var (
	rootCmd = &cobra.Command{
		Use:   "cdoc",
		Short: "Annotate C source files with generated function comments",
	}
	configPath string
)

var (
	outputPath    string
	reportPath    string
	flagProvider  string
	flagModel     string
	flagMaxTokens int
	flagTemp      float32
	flagConc      int
	flagRetries   int
	flagTimeout   int
	flagMaxBytes  int
	flagWidth     int
	flagFreeTier  bool
	flagVerify    bool
)

func main() {
	// One cancellation token for the whole run: Ctrl-C drains in-flight
	// requests and the completed annotations still reach the output.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (default cdoc.yaml when present)")

	annotateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to write the annotated file to")
	annotateCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON run report to this path")
	annotateCmd.Flags().StringVar(&flagProvider, "provider", "", "Text generation provider (gemini or openai)")
	annotateCmd.Flags().StringVar(&flagModel, "model", "", "Model identifier")
	annotateCmd.Flags().IntVar(&flagMaxTokens, "max-tokens", 0, "Token ceiling per request")
	annotateCmd.Flags().Float32Var(&flagTemp, "temperature", 0, "Sampling temperature")
	annotateCmd.Flags().IntVar(&flagConc, "concurrency", 0, "Describe requests in flight at once")
	annotateCmd.Flags().IntVar(&flagRetries, "retries", 0, "Attempts per function before recording a failure")
	annotateCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Per-request timeout in seconds")
	annotateCmd.Flags().IntVar(&flagMaxBytes, "max-func-bytes", 0, "Skip functions larger than this many bytes (0 disables)")
	annotateCmd.Flags().IntVar(&flagWidth, "width", 0, "Column the comment text wraps at")
	annotateCmd.Flags().BoolVar(&flagFreeTier, "free-tier", false, "Shape requests for free tier rate limits")
	_ = annotateCmd.MarkFlagRequired("output")

	spansCmd.Flags().BoolVar(&flagVerify, "verify", false, "Cross-check spans against the C grammar (needs a -tags treesitter build)")

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(spansCmd)
	rootCmd.AddCommand(versionCmd)
}

// runConfig assembles the effective configuration: defaults, the YAML
// file, environment, free tier shaping, then explicit flags on top.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat("cdoc.yaml"); err == nil {
			path = "cdoc.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flagFreeTier || cfg.Run.FreeTier {
		cfg.ApplyFreeTier()
	}
	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.AI.Provider = flagProvider
	}
	if f.Changed("model") {
		cfg.AI.Model = flagModel
	}
	if f.Changed("max-tokens") {
		cfg.AI.MaxTokens = flagMaxTokens
	}
	if f.Changed("temperature") {
		cfg.AI.Temperature = flagTemp
	}
	if f.Changed("timeout") {
		cfg.AI.TimeoutSeconds = flagTimeout
	}
	if f.Changed("concurrency") {
		cfg.Run.Concurrency = flagConc
	}
	if f.Changed("retries") {
		cfg.Run.Retries = flagRetries
	}
	if f.Changed("max-func-bytes") {
		cfg.Run.MaxFuncBytes = flagMaxBytes
	}
	if f.Changed("width") {
		cfg.Output.Width = flagWidth
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func poolOptions(cfg *config.Config) annotate.PoolOptions {
	opts := annotate.PoolOptions{
		Concurrency: cfg.Run.Concurrency,
		MaxPauses:   cfg.Run.MaxPauses,
		QuotaPause:  time.Duration(cfg.Run.QuotaPauseSeconds) * time.Second,
	}
	if cfg.Run.RPS > 0 {
		burst := cfg.Run.Burst
		if burst < 1 {
			burst = 1
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Run.RPS), burst)
	}
	return opts
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <input.c>",
	Short: "Annotate every function definition in a C source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := runConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		buf, err := source.Load(args[0])
		if err != nil {
			log.Fatalf("Failed to read input: %v", err)
		}

		ctx := cmd.Context()
		describer, err := annotate.New(ctx, annotate.Options{
			Provider:    cfg.AI.Provider,
			Model:       cfg.AI.Model,
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to create %s client: %v", cfg.AI.Provider, err)
		}
		defer describer.Close()

		runner := pipeline.NewRunner(
			annotate.WithRetry(describer, cfg.Run.Retries, time.Duration(cfg.Run.RetryBaseMS)*time.Millisecond),
			pipeline.Options{
				Pool:         poolOptions(cfg),
				MaxFuncBytes: cfg.Run.MaxFuncBytes,
				CommentWidth: cfg.Output.Width,
			},
		)
		res, err := runner.Run(ctx, buf)
		if err != nil {
			log.Fatalf("Annotation failed: %v", err)
		}

		if err := os.WriteFile(outputPath, []byte(res.Output), 0644); err != nil {
			log.Fatalf("Failed to write output file %s: %v", outputPath, err)
		}
		if reportPath != "" {
			if err := res.Report.Save(reportPath); err != nil {
				log.Printf("Warning: failed to save run report: %v", err)
			}
		}

		printSummary(res)
		fmt.Printf("🎉 Wrote %s\n", outputPath)
		if !res.Complete() {
			os.Exit(exitOmissions)
		}
	},
}

var (
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✔")
	skipMark = color.New(color.FgYellow, color.Bold).Sprint("−")
	failMark = color.New(color.FgRed, color.Bold).Sprint("✘")
)

func printSummary(res *pipeline.Result) {
	for _, o := range res.Outcomes {
		name := o.Name
		if name == "" {
			name = "(unnamed)"
		}
		switch o.Status {
		case pipeline.StatusAnnotated:
			fmt.Printf("  %s %-24s line %-5d %v\n", okMark, name, o.Line, o.Elapsed.Round(time.Millisecond))
		case pipeline.StatusSkipped:
			fmt.Printf("  %s %-24s line %-5d %s\n", skipMark, name, o.Line, o.Reason)
		default:
			fmt.Printf("  %s %-24s line %-5d %s\n", failMark, name, o.Line, o.Reason)
		}
	}
}

var spansCmd = &cobra.Command{
	Use:   "spans <input.c>",
	Short: "List located function definitions without annotating",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		buf, err := source.Load(args[0])
		if err != nil {
			log.Fatalf("Failed to read input: %v", err)
		}

		res := locator.Locate(buf)
		fmt.Printf("🔍 %d function definitions in %s\n", len(res.Spans), buf.Path())
		for _, sp := range res.Spans {
			startLine, _ := buf.Position(sp.SignatureStart)
			endLine, _ := buf.Position(sp.BodyEnd - 1)
			name := locator.FuncName(buf.Text(), sp)
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("  %-24s lines %4d-%-4d bytes %6d-%-6d depth %d\n",
				name, startLine, endLine, sp.SignatureStart, sp.BodyEnd, sp.DepthAtEntry)
		}
		for _, sk := range res.Skipped {
			line, _ := buf.Position(sk.Offset)
			fmt.Printf("  ⚠️ line %d: %s\n", line, sk.Reason)
		}

		if !flagVerify {
			return
		}
		if !verify.Available() {
			log.Fatalf("Failed to verify spans: %v", verify.ErrUnavailable)
		}
		mismatches, err := verify.Compare(buf, res.Spans)
		if err != nil {
			log.Fatalf("Failed to verify spans: %v", err)
		}
		if len(mismatches) == 0 {
			fmt.Println("✅ The C grammar agrees with every span.")
			return
		}
		for _, m := range mismatches {
			fmt.Printf("  ❌ %s at line %d: %s\n", m.Kind, m.Line, m.Detail)
		}
		os.Exit(exitOmissions)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cdoc version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cdoc %s\n", Version)
	},
}
