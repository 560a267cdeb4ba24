package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"assetd/internal/config"
	"assetd/internal/fetcher"
	"assetd/internal/httpapi"
	"assetd/internal/loader"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assetd",
		Short:         "Bundled asset loading engine and daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", envOr("ASSETD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.AddCommand(serveCmd(), fetchCmd(), checkCmd())
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func buildEngine(log zerolog.Logger, cfg config.Config) *loader.Engine {
	timeout := 30 * time.Second
	if cfg.FetchTimeoutMS > 0 {
		timeout = time.Duration(cfg.FetchTimeoutMS) * time.Millisecond
	}
	var policy fetcher.BlockPolicy
	if len(cfg.BlockedHosts) > 0 {
		policy = fetcher.HostBlockPolicy(cfg.BlockedHosts, true)
	}
	f := fetcher.NewHTTP(&http.Client{Timeout: timeout}, policy, log)
	return loader.New(f, log)
}

func serveCmd() *cobra.Command {
	var (
		addr        string
		configPath  string
		bundlesPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)

			var cfg config.Config
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.Addr == "" {
				cfg.Addr = ":8080"
			}
			if bundlesPath != "" {
				cfg.BundlesFile = bundlesPath
			}

			eng := buildEngine(log, cfg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if cfg.BundlesFile != "" {
				bundles, err := config.LoadBundles(cfg.BundlesFile)
				if err != nil {
					return fmt.Errorf("load bundles: %w", err)
				}
				eng.Configure(bundles)
				if cfg.WatchBundles {
					w, err := config.NewBundleWatcher(cfg.BundlesFile, eng.Configure, log)
					if err != nil {
						return fmt.Errorf("bundle watcher: %w", err)
					}
					if err := w.Start(ctx); err != nil {
						return fmt.Errorf("bundle watcher: %w", err)
					}
				}
			}

			httpapi.SetLogger(log)
			httpapi.SetBaseContext(ctx)
			httpapi.SetDefaultNumRetries(cfg.NumRetries)
			srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(eng)}

			go func() {
				log.Info().Str("addr", cfg.Addr).Str("bundles", cfg.BundlesFile).Msg("assetd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("ASSETD_ADDR", ""), "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (.yaml/.json/.toml)")
	cmd.Flags().StringVar(&bundlesPath, "bundles", "", "Path to keyed bundle config file")
	return cmd
}

func fetchCmd() *cobra.Command {
	var (
		bundle  string
		retries int
		sync    bool
	)
	cmd := &cobra.Command{
		Use:     "fetch [paths...]",
		Short:   "Load a set of paths once and report failures",
		Example: "  assetd fetch https://cdn.example.com/a.js css!https://cdn.example.com/a.php",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			eng := buildEngine(log, config.Config{})

			done := make(chan []string, 1)
			err := eng.Load(cmd.Context(), args, bundle, loader.Options{
				NumRetries: retries,
				Sync:       sync,
				Success:    func() { done <- nil },
				Error:      func(notFound []string) { done <- notFound },
			})
			if err != nil {
				return err
			}
			notFound := <-done
			if len(notFound) > 0 {
				for _, p := range notFound {
					fmt.Fprintln(os.Stderr, "not found:", p)
				}
				return fmt.Errorf("%d of %d paths failed", len(notFound), len(args))
			}
			fmt.Printf("loaded %d paths\n", len(args))
			return nil
		},
	}
	cmd.Flags().StringVar(&bundle, "bundle", "", "Bundle id to publish the result under")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries per path after the first failure")
	cmd.Flags().BoolVar(&sync, "sync", false, "Dispatch paths sequentially in input order")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <bundles-file>",
		Short: "Validate a keyed bundle config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundles, err := config.LoadBundles(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d entries\n", len(bundles))
			return nil
		},
	}
}
