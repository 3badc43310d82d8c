package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"deal-hand/config"
	"deal-hand/models"
	"deal-hand/providers"
	"deal-hand/providers/claude"
	"deal-hand/providers/logo"
	"deal-hand/providers/perplexity"
	"deal-hand/providers/secedgar"
	"deal-hand/services"
	"deal-hand/storage"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to deals database.")

	store := storage.NewDealStore(db, logging)
	logging.Info("Running database auto-migration...")
	if err := store.AutoMigrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Sources and Verifier
	sources := buildSources(cfg, logging)
	if len(sources) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", cfg.EnabledSourceList()))

	verifier := services.NewVerifier(buildVerifierBackend(cfg, logging), services.NewRatePacer(cfg.VerifyInterval), cfg.VerifyTimeout, logging)

	var logos providers.LogoFinder
	if cfg.LogoLookupEnabled {
		logos = logo.NewFetcher(cfg, logging)
	}

	var archive services.Archiver
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), storage.S3Params{
			URL:    cfg.ArchiveS3URL,
			Region: cfg.ArchiveS3Region,
			Key:    cfg.ArchiveS3Key,
			Secret: cfg.ArchiveS3Secret,
		})
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archive = storage.NewRunArchive(s3Client, cfg.ArchiveS3URL, cfg.ArchiveS3Bucket, logging)
	}

	syncService := services.NewSyncService(sources, verifier, store, logos, archive, logging)
	runner := newSyncRunner(syncService, cfg, logging)

	// Setup Router
	router := setupRouter(cfg, store, runner, logging)

	// Setup Cron
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled sync job...")
		summary, err := runner.Run(context.Background(), models.SyncTypeScheduled)
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			return
		}
		logging.Info("Cron job completed",
			zap.Int("deals_added", summary.DealsAdded),
			zap.Int("deals_updated", summary.DealsUpdated))
	})
	if err != nil {
		logging.Fatal("Invalid CRON_SCHEDULE", zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// buildSources erstellt die aktivierten Quellen in Konfigurationsreihenfolge.
func buildSources(cfg *config.Config, logging *zap.Logger) []services.CandidateSource {
	var sources []services.CandidateSource
	for _, name := range cfg.EnabledSourceList() {
		switch name {
		case "sec_edgar":
			sources = append(sources, services.NewFilingSource(secedgar.NewFetcher(cfg, logging)))
		case "perplexity":
			discoverer := perplexity.NewClient(cfg, logging)
			sources = append(sources, services.NewDiscoverySource(discoverer, cfg.RegionList(), services.NewRatePacer(cfg.DiscoveryInterval), logging))
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	return sources
}

// buildVerifierBackend wählt das Verifikations-Backend; nil bedeutet keine externen Prüfungen.
func buildVerifierBackend(cfg *config.Config, logging *zap.Logger) providers.DealVerifier {
	switch cfg.VerifierBackend {
	case config.VerifierPerplexity:
		return perplexity.NewClient(cfg, logging)
	case config.VerifierAnthropic:
		return claude.NewVerifier(cfg, logging)
	default:
		return nil
	}
}

// errSyncRunning wird zurückgegeben, wenn bereits ein Lauf aktiv ist.
var errSyncRunning = errors.New("a sync is already running")

// syncRunner verhindert parallele Läufe von Cron und manuellem Trigger.
type syncRunner struct {
	service interface {
		RunSync(ctx context.Context, opts services.SyncOptions) (services.SyncSummary, error)
	}
	cfg     *config.Config
	logger  *zap.Logger
	running atomic.Bool
}

func newSyncRunner(service *services.SyncService, cfg *config.Config, logging *zap.Logger) *syncRunner {
	return &syncRunner{service: service, cfg: cfg, logger: logging}
}

func (r *syncRunner) Run(ctx context.Context, syncType models.SyncType) (services.SyncSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return services.SyncSummary{}, errSyncRunning
	}
	defer r.running.Store(false)

	return r.service.RunSync(ctx, services.SyncOptions{
		SyncType:                syncType,
		MaterialityThresholdUSD: r.cfg.MaterialityThresholdUSD,
		ExternalCallBudget:      r.cfg.ExternalCallBudget,
		DaysBack:                r.cfg.DaysBack,
		DisableExternalChecks:   r.cfg.VerifierBackend == config.VerifierNone,
	})
}

// dealReader ist der lesende Teil des DealStore, den die HTTP-Routen brauchen.
type dealReader interface {
	ListDeals(ctx context.Context, f storage.DealFilter) ([]models.Deal, int64, error)
	FindDealBySlug(ctx context.Context, slug string) (*models.Deal, error)
	StatusHistory(ctx context.Context, dealID uint) ([]models.DealStatusHistory, error)
	ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error)
}

func setupRouter(cfg *config.Config, store dealReader, runner *syncRunner, logging *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupDealRoutes(router, store, logging)
	setupSyncRoutes(router, store, runner, logging)
	return router
}

func setupDealRoutes(router *gin.Engine, store dealReader, logging *zap.Logger) {
	rg := router.Group("/deals")

	rg.GET("", func(c *gin.Context) {
		var filter storage.DealFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
			return
		}
		deals, total, err := store.ListDeals(c.Request.Context(), filter)
		if err != nil {
			logging.Error("Fehler beim Laden der Deals", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deals": deals, "total": total})
	})

	rg.GET("/:slug", func(c *gin.Context) {
		deal, err := store.FindDealBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "deal not found"})
				return
			}
			logging.Error("Fehler beim Laden des Deals", zap.String("slug", c.Param("slug")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		history, err := store.StatusHistory(c.Request.Context(), deal.ID)
		if err != nil {
			logging.Error("Fehler beim Laden der Statushistorie", zap.Uint("deal_id", deal.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deal": deal, "status_history": history})
	})
}

func setupSyncRoutes(router *gin.Engine, store dealReader, runner *syncRunner, logging *zap.Logger) {
	router.POST("/sync", func(c *gin.Context) {
		if c.Query("async") == "true" {
			go func() {
				if _, err := runner.Run(context.Background(), models.SyncTypeManual); err != nil {
					logging.Error("Async sync failed", zap.Error(err))
				}
			}()
			c.JSON(http.StatusAccepted, gin.H{"message": "Sync triggered."})
			return
		}

		summary, err := runner.Run(c.Request.Context(), models.SyncTypeManual)
		if err != nil {
			if errors.Is(err, errSyncRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			logging.Error("Manual sync failed", zap.String("run_id", summary.RunID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
	})

	router.GET("/sync-logs", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		logs, err := store.ListSyncLogs(c.Request.Context(), limit)
		if err != nil {
			logging.Error("Fehler beim Laden der Sync-Protokolle", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sync_logs": logs})
	})
}
