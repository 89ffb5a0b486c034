package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/catalog"
	"github.com/hyperjump/suisen/internal/cli"
	"github.com/hyperjump/suisen/internal/client"
	"github.com/hyperjump/suisen/internal/config"
	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/internal/server"
	"github.com/hyperjump/suisen/internal/storage"
	"github.com/hyperjump/suisen/pkg/utils"
)

// app carries the persistent flags shared by every command.
type app struct {
	configPath string
	serverURL  string
	output     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "suisen",
		Short:         "Vector-similarity recommendation engine",
		Long:          color.CyanString("suisen") + " stores items with embeddings and recommends similar ones.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	pf.StringVar(&a.serverURL, "server", defaultServerURL, `server URL; use --server "" to open the store directly`)
	pf.StringVarP(&a.output, "output", "o", string(cli.OutputText), "output format: text or json")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.serverCmd(),
		a.addCmd(),
		a.getCmd(),
		a.recommendCmd(),
		a.searchCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.statsCmd(),
		a.importCmd(),
		a.reindexCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "suisen version %s\n", version)
		},
	}
}

func (a *app) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(a.output)
}

// logger builds the logger for cfg. One-shot commands log warnings and above unless a level
// is configured or --debug is set.
func (a *app) logger(cfg *config.Config, oneShot bool) (*zap.Logger, error) {
	debug := cfg.Debug || a.debug
	level := cfg.LogLevel
	if level == "" && oneShot && !debug {
		level = "warn"
	}
	return utils.NewLoggerAt(level, debug)
}

// open returns the API to run a command against: the HTTP client when a server URL is set,
// otherwise a service over the local store. The returned func releases it.
func (a *app) open(ctx context.Context) (server.Recommender, func(), error) {
	if a.serverURL != "" {
		return client.New(a.serverURL), func() {}, nil
	}
	cfg, _, err := loadConfig(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := a.logger(cfg, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return components.Service, func() {
		components.Close()
		_ = logger.Sync()
	}, nil
}

// run opens the API, calls fn, and writes its result in the selected format.
func run[T any](a *app, cmd *cobra.Command, fn func(context.Context, server.Recommender) (T, error), write func(cli.OutputFormat, T) error) error {
	format, err := a.format()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	api, closeFn, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	res, err := fn(ctx, api)
	if err != nil {
		return err
	}
	return write(format, res)
}

func (a *app) serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServer()
		},
	}
}

func (a *app) runServer() error {
	cfg, resolvedConfigPath, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || a.debug
	logger, err := a.logger(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	importer := catalog.NewImporter(components.Service, catalog.WithImportLogger(logger))
	if len(cfg.Catalog.Paths) > 0 {
		if _, err := importer.ImportPaths(ctx, cfg.Catalog.Paths); err != nil {
			return fmt.Errorf("catalog import: %w", err)
		}
	}
	if cfg.Catalog.Watch && len(cfg.Catalog.Paths) > 0 {
		watchOpts := []catalog.WatcherOption{
			catalog.WithDebounce(time.Duration(cfg.Catalog.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, catalog.WithLogger(logger))
		}
		watchSvc := catalog.NewWatcher(cfg.Catalog.Paths, func(path string) {
			if _, err := importer.Import(ctx, path); err != nil {
				logger.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start catalog watcher: %w", err)
		}
		defer watchSvc.Stop()
	}

	var srvOpts []server.Option
	if cfg.Storage.Driver != storage.DriverMemory {
		srvOpts = append(srvOpts, server.WithDatabasePath(cfg.Storage.DatabasePath))
	}
	srv := server.NewServer(components.Service, &cfg.Server, logger, srvOpts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func (a *app) addCmd() *cobra.Command {
	var input models.ItemInput
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or replace an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.ID = args[0]
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.AddResult, error) {
					return api.AddItem(ctx, input)
				},
				func(f cli.OutputFormat, res *models.AddResult) error {
					return cli.WriteAddResult(cmd.OutOrStdout(), res, f)
				})
		},
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "item title (required)")
	cmd.Flags().StringVar(&input.Description, "description", "", "item description (required)")
	cmd.Flags().StringVar(&input.Category, "category", "", "item category")
	cmd.Flags().StringSliceVar(&input.Tags, "tags", nil, "comma-separated tags")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.ItemMetadata, error) {
					return api.GetItem(ctx, args[0])
				},
				func(f cli.OutputFormat, res *models.ItemMetadata) error {
					return cli.WriteItem(cmd.OutOrStdout(), res, f)
				})
		},
	}
}

func (a *app) recommendCmd() *cobra.Command {
	var (
		topK        int
		includeSelf bool
	)
	cmd := &cobra.Command{
		Use:   "recommend <id>",
		Short: "Recommend items similar to an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.RecommendRequest{ID: args[0], ExcludeSelf: models.BoolPtr(!includeSelf)}
			if cmd.Flags().Changed("top-k") {
				req.TopK = models.IntPtr(topK)
			}
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.RecommendResponse, error) {
					return api.Recommend(ctx, req)
				},
				func(f cli.OutputFormat, res *models.RecommendResponse) error {
					return cli.WriteRecommendations(cmd.OutOrStdout(), res, f)
				})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", models.DefaultTopK, "number of recommendations")
	cmd.Flags().BoolVar(&includeSelf, "include-self", false, "allow the item itself in the results")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		topK     int
		category string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search items by free text",
		Long:  "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.SearchRequest{Query: buildSearchQuery(args), Category: category}
			if cmd.Flags().Changed("top-k") {
				req.TopK = models.IntPtr(topK)
			}
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.SearchResponse, error) {
					return api.Search(ctx, req)
				},
				func(f cli.OutputFormat, res *models.SearchResponse) error {
					return cli.WriteSearchResults(cmd.OutOrStdout(), res, f)
				})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", models.DefaultTopK, "number of results")
	cmd.Flags().StringVar(&category, "category", "", "only rank items whose category contains this text")
	return cmd
}

func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func (a *app) listCmd() *cobra.Command {
	var filter models.ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.ListResponse, error) {
					return api.ListItems(ctx, filter)
				},
				func(f cli.OutputFormat, res *models.ListResponse) error {
					return cli.WriteList(cmd.OutOrStdout(), res, f)
				})
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "only list items whose category contains this text")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "page size (default from config)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "items to skip")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.DeleteResult, error) {
					return api.DeleteItem(ctx, args[0])
				},
				func(f cli.OutputFormat, res *models.DeleteResult) error {
					return cli.WriteDeleteResult(cmd.OutOrStdout(), res, f)
				})
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"status"},
		Short:   "Show item counts, dimensionality, index type and embedding backend",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.Stats, error) {
					return api.GetStats(ctx)
				},
				func(f cli.OutputFormat, res *models.Stats) error {
					return cli.WriteStats(cmd.OutOrStdout(), res, f)
				})
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [catalog...]",
		Short: "Import items from YAML, JSON, CSV or Excel catalogs",
		Long:  "Imports the given catalog files or directories, or the catalog paths from the config when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				cfg, _, err := loadConfig(a.configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				paths = cfg.Catalog.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no catalog given and none configured")
			}
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) ([]*catalog.Report, error) {
					return catalog.NewImporter(api).ImportPaths(ctx, paths)
				},
				func(f cli.OutputFormat, res []*catalog.Report) error {
					return cli.WriteImportReports(cmd.OutOrStdout(), res, f)
				})
		},
	}
}

func (a *app) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Recompute every embedding with the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a, cmd,
				func(ctx context.Context, api server.Recommender) (*models.ReindexResult, error) {
					return api.Reindex(ctx)
				},
				func(f cli.OutputFormat, res *models.ReindexResult) error {
					return cli.WriteReindexResult(cmd.OutOrStdout(), res, f)
				})
		},
	}
}
