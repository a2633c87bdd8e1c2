package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finledger/backend/internal/analysis"
	"github.com/finledger/backend/internal/analysis/memqueue"
	"github.com/finledger/backend/internal/analysis/rabbit"
	"github.com/finledger/backend/internal/cache"
	"github.com/finledger/backend/internal/config"
	"github.com/finledger/backend/internal/ledger"
	"github.com/finledger/backend/internal/metrics"
	"github.com/finledger/backend/internal/models"
	"github.com/finledger/backend/internal/pubsub"
	"github.com/finledger/backend/internal/router"
	"github.com/finledger/backend/internal/search"
)

func main() {
	// gin uses debug as the default mode, we use release for
	// security reasons
	ginMode, ok := os.LookupEnv("GIN_MODE")
	if !ok {
		gin.SetMode("release")
	} else {
		gin.SetMode(ginMode)
	}

	// Log format can be explicitly set.
	// If it is not set, it defaults to human readable for development
	// and JSON for release
	logFormat, ok := os.LookupEnv("LOG_FORMAT")
	output := io.Writer(os.Stdout)
	if (!ok && gin.IsDebugging()) || (ok && logFormat == "human") {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// Create data directory
	err = os.MkdirAll(filepath.Dir(cfg.DBPath), os.ModePerm)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// Connect to the database
	err = models.Connect(cfg.DBPath)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	err = metrics.Register()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	defer metrics.Unregister()

	// Sinks: search index and account cache
	var index *search.Index
	if cfg.SearchIndexPath != "" {
		index, err = search.Open(cfg.SearchIndexPath)
	} else {
		log.Warn().Msg("SEARCH_INDEX_PATH is not set, keeping the search index in memory")
		index, err = search.OpenInMemory()
	}
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	defer index.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	accountCache := cache.New(redisClient, 0)
	results := pubsub.NewRedisPublisher(redisClient)

	// Analysis queue: RabbitMQ when configured, in-process otherwise
	var queue interface {
		analysis.Publisher
		analysis.Consumer
	}
	if cfg.AMQPURL != "" {
		queue, err = rabbit.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
	} else {
		log.Warn().Msg("AMQP_URL is not set, using the in-process analysis queue")
		queue = memqueue.New(cfg.QueueBuffer, cfg.Workers)
	}
	defer queue.Close()

	dispatcher := analysis.NewDispatcher(queue, log.Logger)
	service := ledger.NewService(models.DB, index, accountCache, dispatcher, metrics.PrometheusObserver{}, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The analysis worker only runs when an analyser is configured.
	// Requests enqueued without one are dropped, which the at-most-once
	// channel permits.
	if _, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
		analyser, err := analysis.NewGemini(ctx, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}

		worker := analysis.NewWorker(queue, service, analyser, results, cfg.WindowDays, log.Logger)
		err = worker.Start(ctx)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}

		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()

			if err := worker.Stop(stopCtx); err != nil {
				log.Error().Err(err).Msg("analysis worker did not stop cleanly")
			}
		}()
	} else {
		log.Warn().Msg("GEMINI_API_KEY is not set, analysis requests will not be consumed")
	}

	r, err := router.Router()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Msg(err.Error())
	}
}
