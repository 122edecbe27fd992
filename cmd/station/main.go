package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/api"
	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/config"
	"clinicware.com/callboard/internal/couchbase"
	"clinicware.com/callboard/internal/dispatch"
	"clinicware.com/callboard/internal/feed"
	"clinicware.com/callboard/internal/lifecycle"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/snapshot"
	"clinicware.com/callboard/internal/store"
	"clinicware.com/callboard/internal/sweeper"
	"clinicware.com/callboard/internal/syncer"
	"clinicware.com/callboard/internal/waittime"
	"clinicware.com/callboard/pkg/zerolog_config"
)

func main() {
	cfg := config.Load()
	zerolog_config.Startup(cfg.ElasticsearchURL, "callboard-"+cfg.StationName)

	log.Info().
		Str("unit", cfg.UnitID).
		Str("client_id", cfg.ClientID).
		Msg("Starting callboard station client")

	clock, err := clinic.NewClock(cfg.ClinicTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid clinic timezone")
	}

	conn, err := couchbase.NewConnection(couchbase.Options{
		URL:      cfg.CouchbaseURL,
		Username: cfg.CouchbaseUsername,
		Password: cfg.CouchbasePassword,
		Bucket:   cfg.CouchbaseBucket,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	calls := couchbase.NewCallStore(conn, cfg.UnitID)
	sharedHistory := couchbase.NewHistoryStore(conn, cfg.UnitID)
	feedClient := feed.NewClient(rdb, cfg.UnitID, cfg.ClientID)
	sync := syncer.NewSyncer(calls, sharedHistory, feedClient, clock)

	entities := store.NewEntityStore()
	snapFile := snapshot.New(cfg.SnapshotPath)
	if snap, err := snapFile.Load(); err != nil {
		log.Warn().Err(err).Msg("Could not load local snapshot, starting empty")
	} else {
		entities.Restore(snap)
		log.Info().Int("patients", entities.Len()).Msg("Restored local snapshot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lifecycle.NewSignalHandler().HandleSignals(ctx, cancel)

	// Local state stays authoritative when the shared store is down.
	if err := sync.Reconcile(ctx, entities); err != nil {
		log.Warn().Err(err).Msg("Initial reconcile failed, continuing with local state")
	}

	recent := store.NewHistoryLog(cfg.HistoryLimit)
	engine := dispatch.NewEngine(entities, recent, sync, sync, snapFile, clock)
	estimator := waittime.New(sharedHistory, clock)

	handlers := api.NewHandlers(engine, entities, recent, estimator)
	router := api.SetupRoutes(handlers, metrics.GetInstance().Handler())

	services := []lifecycle.Service{
		api.NewServer(":"+cfg.APIPort, router),
		syncer.NewSubscriber(feedClient, entities, cfg.ClientID, nil),
		sweeper.New(entities, recent, sync, calls, snapFile, clock, cfg.SweepInterval, cfg.ResidencyTimeout),
	}
	if cfg.EnableSystemMetrics {
		services = append(services, metrics.NewSystemCollector(15*time.Second))
	}

	if err := lifecycle.NewSupervisor(services...).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Station client failed")
	}
	log.Info().Msg("Station client stopped")
}
