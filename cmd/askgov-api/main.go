package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/askgov/internal/auth"
	"github.com/MarcoPoloResearchLab/askgov/internal/catalog"
	"github.com/MarcoPoloResearchLab/askgov/internal/config"
	"github.com/MarcoPoloResearchLab/askgov/internal/database"
	"github.com/MarcoPoloResearchLab/askgov/internal/logging"
	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"github.com/MarcoPoloResearchLab/askgov/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile       string
	backfillIndex string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "askgov-api",
		Short: "Government FAQ catalog service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Rebuild the search index from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), cmd)
		},
	}
	backfillCmd.Flags().StringVar(&backfillIndex, "index", "", "Target index (defaults to search.index)")

	setupFlags(rootCmd)
	rootCmd.AddCommand(backfillCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "PostgreSQL connection string")
	cmd.PersistentFlags().String("search-driver", defaults.GetString("search.driver"), "Search driver (opensearch, memory)")
	cmd.PersistentFlags().StringSlice("search-addresses", nil, "OpenSearch node addresses")
	cmd.PersistentFlags().String("search-index", defaults.GetString("search.index"), "Search index name")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Staff session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "search.driver", "search-driver")
	bindFlag(cmd, "search.addresses", "search-addresses")
	bindFlag(cmd, "search.index", "search-index")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type application struct {
	config  config.AppConfig
	logger  *zap.Logger
	db      *gorm.DB
	engine  search.Engine
	catalog *catalog.Service
}

func newApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, err
	}

	engine, err := newSearchEngine(appConfig, logger)
	if err != nil {
		return nil, err
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:          db,
		Engine:            engine,
		IndexName:         appConfig.SearchIndex,
		Sanitizer:         search.NewPlainTextSanitizer(),
		Clock:             time.Now,
		IDProvider:        catalog.NewUUIDProvider(),
		Logger:            logger,
		BackfillChunkSize: appConfig.BackfillChunkSize,
	})
	if err != nil {
		return nil, err
	}

	return &application{config: appConfig, logger: logger, db: db, engine: engine, catalog: catalogService}, nil
}

func newSearchEngine(appConfig config.AppConfig, logger *zap.Logger) (search.Engine, error) {
	if appConfig.SearchDriver == "memory" {
		logger.Warn("using in-process search engine; the index is not persisted")
		return search.NewMemoryEngine(), nil
	}
	return search.NewOpenSearchEngine(search.OpenSearchConfig{
		Addresses: appConfig.SearchAddresses,
		Username:  appConfig.SearchUsername,
		Password:  appConfig.SearchPassword,
		Logger:    logger,
	})
}

func (a *application) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

func runBackfill(ctx context.Context, cmd *cobra.Command) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.catalog.TriggerBackfill(ctx, backfillIndex)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backfill %s: indexed %d documents into %s\n", report.RunID, report.Indexed, report.Index)
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "  failed %s\n", failure.Error())
	}
	return nil
}

func runServer(ctx context.Context) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.close()
	logger := app.logger

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(app.config.SessionSecret),
		Issuer:        app.config.SessionIssuer,
		CookieName:    app.config.SessionCookieName,
	})
	if err != nil {
		return err
	}

	queryService, err := search.NewQueryService(app.engine, logger)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Catalog:  app.catalog,
		Search:   queryService,
		Sessions: sessionValidator,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    app.config.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", app.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
