package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openscholar/journal-backend/internal/auth"
	"github.com/openscholar/journal-backend/internal/config"
	"github.com/openscholar/journal-backend/internal/database"
	"github.com/openscholar/journal-backend/internal/identifier"
	"github.com/openscholar/journal-backend/internal/logging"
	"github.com/openscholar/journal-backend/internal/provider"
	"github.com/openscholar/journal-backend/internal/server"
	"github.com/openscholar/journal-backend/internal/session"
	"github.com/openscholar/journal-backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "journal-api",
		Short: "Open Scholar journal backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("provider-base-url", defaults.GetString("provider.base_url"), "Identity provider base URL")
	cmd.PersistentFlags().String("provider-api-key", "", "Identity provider API key (overrides env)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("country-code", defaults.GetString("phone.default_country_code"), "Default phone country code")
	cmd.PersistentFlags().Int("min-password-length", defaults.GetInt("password.min_length"), "Minimum password length")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "provider.base_url", "provider-base-url")
	bindFlag(cmd, "provider.api_key", "provider-api-key")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "phone.default_country_code", "country-code")
	bindFlag(cmd, "password.min_length", "min-password-length")
	bindFlag(cmd, "log.level", "log-level")
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

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	providerClient, err := provider.NewClient(provider.ClientConfig{
		BaseURL: appConfig.ProviderBaseURL,
		APIKey:  appConfig.ProviderAPIKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	profileService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	sessionStore := session.NewStore(session.StoreConfig{
		Source:       providerClient,
		RefreshToken: appConfig.SessionToken,
		Logger:       logger,
	})
	sessionStore.Start(ctx)

	gateway, err := auth.NewGateway(auth.GatewayConfig{
		Provider:          providerClient,
		Profiles:          profileService,
		Sessions:          sessionStore,
		Classifier:        identifier.NewClassifier(appConfig.DefaultCountryCode),
		ResetRedirectURL:  appConfig.ResetRedirectURL,
		MinPasswordLength: appConfig.MinPasswordLength,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Gateway:  gateway,
		Sessions: sessionStore,
		Profiles: profileService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
