package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hr-assistant/internal/assistant"
	"hr-assistant/internal/common/config"
	"hr-assistant/internal/common/database"
	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/observability"
	"hr-assistant/internal/models"
	dispatchcommand "hr-assistant/internal/pipeline/dispatch-command"
	normalizefilters "hr-assistant/internal/pipeline/normalize-filters"
	parsefallback "hr-assistant/internal/pipeline/parse-fallback"
	parseuserintent "hr-assistant/internal/pipeline/parse-user-intent"
	queryhrdata "hr-assistant/internal/pipeline/query-hrdata"
	"hr-assistant/internal/vocabulary"
)

// app holds everything a command needs. Storage is opened only by commands
// that query the dataset.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability

	parser *parseuserintent.Handler

	db         *sql.DB
	redis      *database.RedisClient
	catalog    *queryhrdata.Catalog
	store      *vocabulary.Store
	cache      *vocabulary.Cache
	dispatcher *dispatchcommand.Dispatcher
	assistant  *assistant.Assistant
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{"app": cfg.App.Name})

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint),
	}

	settings := parseuserintent.FromSettings(cfg.APIs.Completion)
	a.parser = parseuserintent.NewHandler(settings, parsefallback.NewCascade(log), log)
	if !settings.Enabled() {
		zapLog.Warn("completion service is not configured, questions are parsed by keyword rules only")
	}
	return a, nil
}

const openRetryDelay = 200 * time.Millisecond

// retryWithBackoff runs operation until it succeeds, returns a non-retryable
// error or runs out of attempts. The delay doubles after each failure.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) || i == maxRetries-1 {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("nextRetryIn", delay),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operationName, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed: %w", operationName, err)
}

// openStore connects the dataset store and builds the query pipeline.
func (a *app) openStore(ctx context.Context) error {
	var (
		db     *sql.DB
		driver string
	)
	err := retryWithBackoff(ctx, func() error {
		var openErr error
		db, driver, openErr = database.Open(ctx, a.cfg.Database)
		if openErr != nil {
			return apperrors.NewDatabaseConnectionFailedError(openErr)
		}
		return nil
	}, apperrors.GetRetryCount(apperrors.ErrCodeDatabaseConnectionFailed), openRetryDelay, a.zapLog, "dataset store connection")
	if err != nil {
		a.zapLog.Error("dataset store unavailable", zap.String("code", string(apperrors.CodeOf(err))), zap.Error(err))
		return err
	}
	a.db = db

	dialect, err := queryhrdata.ParseDialect(driver)
	if err != nil {
		return apperrors.NewConfigInvalidError(err)
	}
	a.catalog = queryhrdata.NewCatalog(db, dialect)

	a.store, err = vocabulary.Load(ctx, a.catalog)
	if err != nil {
		a.zapLog.Warn("table metadata unavailable, using the static column list", zap.Error(err))
		a.store = vocabulary.Default()
	}

	var tier vocabulary.Tier
	if a.cfg.Database.Redis.Enabled {
		rc, err := database.NewRedis(a.cfg.Database.Redis)
		if err == nil {
			err = rc.Ping(ctx)
		}
		if err != nil {
			a.zapLog.Warn("redis tier disabled", zap.Error(err))
		} else {
			a.redis = rc
			tier = vocabulary.NewRedisTier(rc.Client, a.cfg.Vocabulary.RedisPrefix, config.GetDuration(a.cfg.Vocabulary.CacheTTL))
		}
	}
	a.cache = vocabulary.NewCache(a.catalog, tier, a.log)

	exec := queryhrdata.NewExecutor(&queryhrdata.Config{
		Dialect: dialect,
		Timeout: config.GetDuration(a.cfg.Database.QueryTimeout),
	}, db, a.log)

	a.dispatcher = dispatchcommand.NewDispatcher(
		normalizefilters.NewNormalizer(a.cache, a.log),
		queryhrdata.NewBuilder(dialect),
		exec,
		a.log,
	).WithColumns(a.store)
	a.assistant = assistant.New(a.parser, a.dispatcher, a.obs, a.log)

	a.zapLog.Info("dataset store connected",
		zap.String("driver", driver),
		zap.String("columns", a.store.ColumnList()),
		zap.Bool("redis", tier != nil),
	)
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.obs.Shutdown()
	a.zapLog.Sync()
}

// textColumns are the loaded columns whose values the normalizer matches.
func (a *app) textColumns() []models.Column {
	var out []models.Column
	for _, c := range a.store.Columns() {
		if !a.store.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

func (a *app) describe(ctx context.Context) ([]string, error) {
	var lines []string
	for _, c := range a.store.Columns() {
		colType, err := a.catalog.ColumnType(ctx, c)
		if err != nil {
			return nil, err
		}
		kind := "text"
		if a.store.IsNumeric(c) {
			kind = "numeric"
		}
		lines = append(lines, fmt.Sprintf("%-22s %-18s %s", c, colType, kind))
	}
	return lines, nil
}
