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
	"clinicware.com/callboard/internal/feed"
	"clinicware.com/callboard/internal/lifecycle"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
	"clinicware.com/callboard/internal/syncer"
	"clinicware.com/callboard/pkg/zerolog_config"
)

// The panel client is the public display's data source: it mirrors the
// unit state through the change feed and surfaces announcements. Audio
// and visual rendering are external collaborators reading this process.
func main() {
	cfg := config.Load()
	zerolog_config.Startup(cfg.ElasticsearchURL, "callboard-panel")

	log.Info().
		Str("unit", cfg.UnitID).
		Str("client_id", cfg.ClientID).
		Msg("Starting callboard panel client")

	if _, err := clinic.NewClock(cfg.ClinicTimezone); err != nil {
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
	feedClient := feed.NewClient(rdb, cfg.UnitID, cfg.ClientID)

	entities := store.NewEntityStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lifecycle.NewSignalHandler().HandleSignals(ctx, cancel)

	if err := syncer.Bootstrap(ctx, calls, entities); err != nil {
		log.Warn().Err(err).Msg("Initial load failed, display starts empty")
	}

	onAnnounce := func(ev clinic.CallEvent) {
		log.Info().
			Str("patient", ev.PatientName).
			Str("station", string(ev.Station)).
			Str("destination", ev.Destination).
			Msg("Announcement")
	}

	handlers := api.NewPanelHandlers(entities)
	router := api.SetupPanelRoutes(handlers, metrics.GetInstance().Handler())

	services := []lifecycle.Service{
		api.NewServer(":"+cfg.APIPort, router),
		syncer.NewSubscriber(feedClient, entities, cfg.ClientID, onAnnounce),
	}
	if cfg.EnableSystemMetrics {
		services = append(services, metrics.NewSystemCollector(15*time.Second))
	}

	if err := lifecycle.NewSupervisor(services...).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Panel client failed")
	}
	log.Info().Msg("Panel client stopped")
}
