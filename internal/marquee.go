package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hbomb79/Marquee/internal/api"
	"github.com/hbomb79/Marquee/internal/api/jwt"
	"github.com/hbomb79/Marquee/internal/database"
	"github.com/hbomb79/Marquee/internal/http/tmdb"
	"github.com/hbomb79/Marquee/internal/ingest"
	"github.com/hbomb79/Marquee/internal/ranking"
	"github.com/hbomb79/Marquee/pkg/docker"
	"github.com/hbomb79/Marquee/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	IngestService interface {
		RunnableService
		RefreshNow()
		LastRefreshTime() *time.Time
		NextRefreshTime(now time.Time) time.Time
	}
)

// marqueeImpl represents the top-level object for the server, and is
// responsible for initialising embedded support services, the database,
// stores, the API gateway, et cetera...
type marqueeImpl struct {
	config        MarqueeConfig
	dockerManager docker.DockerManager

	restGateway   RunnableService
	ingestService IngestService
}

const refreshRoutePath = "/api/marquee/v1/auth/refresh/"

func New(config MarqueeConfig) *marqueeImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Marquee services using config: %#v\n", config)
	return &marqueeImpl{config: config}
}

// Run will start all of Marquee by bringing up all required services and
// connections, such as:
// - Docker services
// - Database connection and migrations
// - Service instances
//
// This function will not return until Marquee is stopped.
// To stop Marquee, the provided context must be cancelled. Errors from which
// Marquee cannot recover will also cause Marquee to stop.
func (marquee *marqueeImpl) Run(parent context.Context) error {
	marquee.dockerManager = docker.NewDockerManager()
	defer marquee.dockerManager.Shutdown(time.Second * 10)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Initialising Docker services...\n")
	if err := marquee.initialiseDockerServices(ctx, crashHandler); err != nil {
		return err
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	db := database.New()
	if err := db.Connect(marquee.config.Database); err != nil {
		return err
	}

	orchestrator := NewDataOrchestrator(db)
	authProvider := jwt.NewJwtAuth(
		orchestrator,
		refreshRoutePath,
		[]byte(marquee.config.Auth.AuthTokenSecret),
		[]byte(marquee.config.Auth.RefreshTokenSecret),
	)

	catalogClient := tmdb.NewClient(tmdb.Config{ApiKey: marquee.config.IngestService.ApiKey})
	ingestService, err := ingest.New(marquee.config.IngestService, catalogClient, orchestrator)
	if err != nil {
		return fmt.Errorf("failed to construct ingestion service: %w", err)
	}
	marquee.ingestService = ingestService

	rankingService := ranking.New(orchestrator)
	marquee.restGateway = api.NewRestGateway(&marquee.config.RestConfig, authProvider, marquee.ingestService, rankingService, orchestrator)

	wg := &sync.WaitGroup{}
	marquee.spawnAsyncService(ctx, wg, marquee.ingestService, "ingest-service", crashHandler)
	marquee.spawnAsyncService(ctx, wg, marquee.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Marquee services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Marquee service waitgroup is updated correctly
func (marquee *marqueeImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

// initialiseDockerServices will initialise all supporting services
// for Marquee (Postgres, PgAdmin)
func (marquee *marqueeImpl) initialiseDockerServices(ctx context.Context, crashHandler func(string, error)) error {
	serviceErrors := make(chan error)
	go func() {
		select {
		case err := <-serviceErrors:
			crashHandler("docker-services", err)
		case <-ctx.Done():
		}
	}()

	if marquee.config.Services.EnablePostgres {
		log.Emit(logger.INFO, "Initialising embedded database...\n")
		if _, err := database.InitialiseDockerDatabase(
			marquee.dockerManager,
			marquee.config.Database,
			serviceErrors,
		); err != nil {
			return err
		}
	}

	if marquee.config.Services.EnablePgAdmin {
		log.Emit(logger.INFO, "Initialising embedded pgAdmin server...\n")
		if _, err := database.InitialiseDockerPgAdmin(
			marquee.dockerManager,
			serviceErrors,
		); err != nil {
			return err
		}
	}

	return nil
}
