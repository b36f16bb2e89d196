package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pillscan/internal/config"
	"pillscan/internal/formatter"
	"pillscan/internal/logging"
	"pillscan/internal/scraper"
	"pillscan/internal/server"
	_ "pillscan/internal/sites/identify"
	_ "pillscan/internal/sites/imprint"
	"pillscan/internal/sites/interactions"
	_ "pillscan/internal/sites/openfda"
	_ "pillscan/internal/sites/pill"
)

var version = "dev"

var (
	site         string
	outputFormat string
	outputFile   string
	color        string
	shape        string
	timeout      time.Duration
	showUI       bool
	proxyURL     string
	configFile   string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "pillscan --site SITE TARGET [SECOND]",
		Short:   "Identify pills and look up drug information",
		Version: version,
		Long: `pillscan identifies a pill from a photo and looks up drug information:
candidate drugs by imprint, color and shape, reported side effects, and
drug-food interactions between two drugs.`,
		Example: `  # Read imprint, color and shape from a photo
  pillscan --site pill.features pill.jpg

  # Photo to candidate drugs in one step
  pillscan --site pill.identify pill.jpg -f json

  # Search by imprint
  pillscan --site drugs.imprint L484 --color white --shape round

  # Reported side effects
  pillscan --site openfda.events aspirin -o effects.csv

  # Drug-food interactions for a pair of drugs
  pillscan --site drugs.interactions warfarin aspirin -f markdown

  # Serve every site over HTTP
  pillscan serve`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				os.Exit(0)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (defaults to ./pillscan.yaml when present)")

	rootCmd.Flags().StringVar(&site, "site", "", "Site to query (see `pillscan sites`)")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (html, text, markdown, json, csv)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (format inferred from extension if -f not specified)")
	rootCmd.Flags().StringVar(&color, "color", "", "Pill color for drugs.imprint")
	rootCmd.Flags().StringVar(&shape, "shape", "", "Pill shape for drugs.imprint")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Request timeout duration (defaults to HTTP_TIMEOUT)")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890), defaults to PILLSCAN_PROXY env var")
	_ = rootCmd.MarkFlagRequired("site")

	rootCmd.AddCommand(sitesCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List available sites",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range scraper.Names() {
				fmt.Println(name)
			}
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Serve every site over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mc := interactions.NewMemoryCache(cfg.IDCacheTTL)
			if cfg.IDCacheTTL > 0 {
				go mc.Run(ctx, cfg.IDCacheTTL)
			}
			var cache scraper.IDCache = mc
			if cfg.RedisURL != "" {
				rc, err := interactions.DialRedisCache(ctx, cfg.RedisURL, cfg.IDCacheTTL)
				if err != nil {
					return err
				}
				defer rc.Close()
				cache = rc
			}

			srv := server.NewServer(cfg, logger, server.WithIDCache(cache))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func run(cmd *cobra.Command, args []string) error {
	target := args[0]

	// If output file is specified but format is not, infer format from file extension
	if outputFile != "" && !cmd.Flags().Changed("format") {
		if inferred := formatter.InferFromExtension(outputFile); inferred != "" {
			outputFormat = inferred
		}
	}
	if !formatter.Valid(outputFormat) {
		return fmt.Errorf("invalid output format: %s", outputFormat)
	}

	s, ok := scraper.Get(site)
	if !ok {
		return fmt.Errorf("unknown site: %s", site)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if proxyURL != "" {
		cfg.ProxyURL = proxyURL
	}

	extra := map[string]string{"color": color, "shape": shape}
	if len(args) > 1 {
		extra["with"] = args[1]
	}

	opts := scraper.Options{
		Config:  cfg,
		Logger:  logger,
		Timeout: timeout,
		ShowUI:  showUI,
		Extra:   extra,
	}

	ctx := context.Background()

	if cfg.RedisURL != "" {
		cache, err := interactions.DialRedisCache(ctx, cfg.RedisURL, cfg.IDCacheTTL)
		if err != nil {
			logger.Warn("drug ID cache unavailable", zap.Error(err))
		} else {
			defer cache.Close()
			opts.IDCache = cache
		}
	}

	content, err := s.Scrape(ctx, target, opts)
	if err != nil {
		return fmt.Errorf("failed to scrape: %w", err)
	}

	outputContent, err := formatter.Format(content, outputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(outputContent), 0644); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", outputFile)
	} else {
		fmt.Println(outputContent)
	}

	return nil
}
