// Package app wires configuration, storage, clients, and services into a
// runnable application core shared by all commands.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/clients/frankfurter"
	"github.com/ledgerflow/ledgerflow/internal/clients/gemini"
	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/services/categorizer"
	"github.com/ledgerflow/ledgerflow/internal/services/coordinator"
	"github.com/ledgerflow/ledgerflow/internal/services/normalizer"
	"github.com/ledgerflow/ledgerflow/internal/services/override"
	"github.com/ledgerflow/ledgerflow/internal/storage/badger"
	"github.com/ledgerflow/ledgerflow/internal/storage/csvsource"
)

// App holds all initialized services and clients. It is the shared core
// used by every command.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager
	Sources interfaces.SourceStore

	FXClient interfaces.ExchangeRateClient
	AIClient interfaces.AICategorizer

	Normalizer  interfaces.NormalizerService
	Categorizer interfaces.CategorizerService
	Override    interfaces.OverrideService
	Coordinator interfaces.CoordinatorService
}

// NewApp initializes the application. configPath may be empty, in which
// case LEDGERFLOW_CONFIG and then the default locations are tried.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("LEDGERFLOW_CONFIG")
	}
	if configPath == "" {
		configPath = "config/ledgerflow.toml"
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := badger.NewManager(logger, filepath.Clean(config.Storage.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	kv := storageManager.KeyValueStore()

	geminiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured; categorization runs will fail")
	}

	aiClient, err := gemini.NewClient(ctx, geminiKey,
		gemini.WithModel(config.Clients.Gemini.Model),
		gemini.WithTemperature(config.Clients.Gemini.Temperature),
		gemini.WithLogger(logger),
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	fxClient := frankfurter.NewClient(
		frankfurter.WithBaseURL(config.Clients.FX.BaseURL),
		frankfurter.WithRateLimit(config.Clients.FX.RateLimit),
		frankfurter.WithTimeout(config.Clients.FX.GetTimeout()),
		frankfurter.WithLogger(logger),
	)

	clock := interfaces.SystemClock()

	retryOpts := common.DefaultRetryOptions()
	retryOpts.MaxAttempts = config.Normalization.MaxAttempts
	retryOpts.Base = config.Normalization.GetBackoffBase()
	retryOpts.Cap = config.Normalization.GetBackoffCap()

	sourceStore := csvsource.NewStore(logger, config.Sources.Dir, config.Sources.WriteBackIDs)

	converter := normalizer.NewConverter(fxClient, clock, logger, retryOpts)
	normalizerSvc := normalizer.NewService(
		storageManager.ResultStore(),
		sourceStore,
		converter,
		clock,
		logger,
		config.Currencies.Supported,
	)

	learner := categorizer.NewLearner(storageManager.ResultStore(), logger, config.Historical)
	calc := categorizer.NewCalculator(config.Confidence, config.Historical)
	categorizerSvc := categorizer.NewService(
		storageManager.ResultStore(),
		aiClient,
		learner,
		calc,
		clock,
		logger,
		config.Categorization,
		retryOpts,
	)

	resolver := override.NewResolver(storageManager.CategoriesStore(), logger)
	overrideSvc := override.NewService(storageManager.ResultStore(), resolver, clock, logger)

	coordinatorSvc := coordinator.NewService(
		storageManager,
		sourceStore,
		normalizerSvc,
		categorizerSvc,
		converter,
		clock,
		logger,
		config.Categorization.Recategorize,
	)

	app := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Sources:     sourceStore,
		FXClient:    fxClient,
		AIClient:    aiClient,
		Normalizer:  normalizerSvc,
		Categorizer: categorizerSvc,
		Override:    overrideSvc,
		Coordinator: coordinatorSvc,
	}

	if err := app.seedCategories(ctx); err != nil {
		storageManager.Close()
		return nil, err
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("data_path", config.Storage.Path).
		Msg("ledgerflow initialized")

	return app, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Storage.Close()
}

// defaultCategories is the starter set installed into an empty store.
var defaultCategories = []models.Category{
	{Name: "Groceries", Description: "Supermarkets and food shops", Examples: "tesco, sainsburys, aldi, lidl"},
	{Name: "Eating Out", Description: "Restaurants, cafes, takeaway", Examples: "pret, deliveroo, nandos"},
	{Name: "Transport", Description: "Public transport, fuel, taxis", Examples: "tfl, trainline, uber, shell"},
	{Name: "Shopping", Description: "Retail and online shopping", Examples: "amazon, argos, john lewis"},
	{Name: "Bills", Description: "Utilities, council tax, subscriptions", Examples: "british gas, octopus, netflix"},
	{Name: "Housing", Description: "Rent and mortgage payments", Examples: "rent, mortgage"},
	{Name: "Health", Description: "Pharmacy, fitness, medical", Examples: "boots, gym, puregym"},
	{Name: "Travel", Description: "Holidays, flights, hotels", Examples: "airbnb, easyjet, booking.com"},
	{Name: "Entertainment", Description: "Events, streaming, hobbies", Examples: "spotify, cinema, steam"},
	{Name: "Income", Description: "Salary and other money in", Examples: "salary, payroll, refund"},
	{Name: "Transfers", Description: "Movements between own accounts", Examples: "topup, pot transfer, savings"},
	{Name: "Other", Description: "Anything that fits nowhere else"},
}

// seedCategories installs the starter category set into an empty store so
// first runs have something to assign.
func (a *App) seedCategories(ctx context.Context) error {
	existing, err := a.Storage.CategoriesStore().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, cat := range defaultCategories {
		cat.ID = uuid.NewString()
		cat.IsActive = true
		if err := a.Storage.CategoriesStore().Save(ctx, &cat); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
		}
	}

	a.Logger.Info().Int("count", len(defaultCategories)).Msg("Seeded default categories")
	return nil
}
