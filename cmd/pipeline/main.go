package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	segmentio "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/adapters/batchsink"
	httpHandlers "github.com/reybrally/order-pipeline/internal/adapters/http/handlers"
	kaf "github.com/reybrally/order-pipeline/internal/adapters/kafka"
	"github.com/reybrally/order-pipeline/internal/adapters/notify"
	"github.com/reybrally/order-pipeline/internal/adapters/recommend"
	"github.com/reybrally/order-pipeline/internal/adapters/search"
	"github.com/reybrally/order-pipeline/internal/adapters/workflowstore"
	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/app/workflow"
	"github.com/reybrally/order-pipeline/internal/config"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
	"github.com/reybrally/order-pipeline/internal/logging"
)

// сбойный батч не коммитим — consumer повторит его целиком
var errRedeliver = errors.New("one or more sinks failed, batch will be retried")

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.InitLogger()
	logging.LogInfo("starting order-pipeline", logrus.Fields{
		"pid":  os.Getpid(),
		"port": cfg.HTTP.Port,
		"env":  cfg.App.Env,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := mustPG(ctx, cfg)
	defer pool.Close()

	index := search.NewIndex(pool)

	// Хранилище исполнений: redis застолбит имя атомарно (SetNX), память — dev
	var store workflow.Store
	var redisStore *workflowstore.RedisStore
	if cfg.App.StoreBackend == "redis" {
		redisStore = workflowstore.NewRedisStore(workflowstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		defer redisStore.Close()
		store = redisStore
		logging.LogInfo("redis execution store enabled", logrus.Fields{"addr": cfg.Redis.Addr, "ttl": cfg.Redis.TTL.String()})
	} else {
		store = workflowstore.NewMemoryStore()
		logging.LogInfo("memory execution store enabled", logrus.Fields{})
	}

	prod := mustKafkaProducer(cfg)
	defer prod.Close()

	var sender workflow.Sender
	if cfg.App.NotifyBackend == "kafka" {
		sender = notify.NewKafkaSender(prod, cfg.Kafka.NotifyTopic)
	} else {
		sender = notify.LogSender{}
	}

	// Сюда подключается внешний платёжный шлюз; dev-вариант отвечает сразу
	payments := func(ctx context.Context, input attrvalue.Document) (attrvalue.Document, error) {
		return attrvalue.Document{
			"paymentTx": uuid.New().String(),
			"chargedAt": time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	engine := workflow.NewEngine(store, workflow.NewStepInvoker(payments, sender), workflow.EngineConfig{
		Timeout:        cfg.Workflow.Timeout,
		PaymentRetries: cfg.Workflow.PaymentRetries,
		PaymentBackoff: cfg.Workflow.PaymentBackoff,
	})

	dispatcher := stream.NewDispatcher(
		search.NewBridge(index),
		workflow.NewStarter(engine),
	)

	sink := batchsink.New(batchsink.NewFSWriter(cfg.Sink.Dir), batchsink.Config{
		StreamName:      cfg.Sink.StreamName,
		Interval:        cfg.Sink.Interval,
		SizeThresholdMB: cfg.Sink.SizeThresholdMB,
		MaxRetries:      cfg.Sink.MaxRetries,
		Backoff:         cfg.Sink.Backoff,
	})

	clicks := stream.NewClickstreamProcessor(
		cfg.Workflow.TrackingID,
		recommend.NewPublisher(prod, cfg.Kafka.RecommendTopic),
		sink,
	)

	feedConsumer := newConsumer(cfg, "order-pipeline-feed")
	go func() {
		logging.LogInfo("change-feed consumer subscribing", logrus.Fields{
			"topic": cfg.Kafka.ChangeFeedTopic, "group": cfg.Kafka.ChangeFeedGroup,
		})
		err := feedConsumer.Subscribe(ctx, cfg.Kafka.ChangeFeedTopic, cfg.Kafka.ChangeFeedGroup,
			func(ctx context.Context, batch []kaf.Message) error {
				events := make([]stream.MutationEvent, 0, len(batch))
				for _, msg := range batch {
					ev, err := kaf.DecodeMutation(msg)
					if err != nil {
						// битый конверт permanent: лог и мимо, иначе батч застрянет
						logging.LogError("change-feed: undecodable message", err, logrus.Fields{
							"topic": msg.Topic, "offset": msg.Raw.Offset,
						})
						continue
					}
					events = append(events, ev)
				}
				if res := dispatcher.Dispatch(ctx, events); res.Failed() {
					return errRedeliver
				}
				return nil
			})
		if err != nil {
			logging.LogError("change-feed consumer stopped", err, logrus.Fields{})
		}
	}()

	clickConsumer := newConsumer(cfg, "order-pipeline-clicks")
	go func() {
		logging.LogInfo("clickstream consumer subscribing", logrus.Fields{
			"topic": cfg.Kafka.ClickstreamTopic, "group": cfg.Kafka.ClickstreamGroup,
		})
		err := clickConsumer.Subscribe(ctx, cfg.Kafka.ClickstreamTopic, cfg.Kafka.ClickstreamGroup,
			func(ctx context.Context, batch []kaf.Message) error {
				raws := make([][]byte, 0, len(batch))
				for _, msg := range batch {
					raws = append(raws, msg.Raw.Value)
				}
				_, err := clicks.Process(ctx, raws)
				return err
			})
		if err != nil {
			logging.LogError("clickstream consumer stopped", err, logrus.Fields{})
		}
	}()

	h := httpHandlers.NewPipelineHandlers(engine, index)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.StripSlashes, middleware.Timeout(5*time.Second))
	r.Get("/health", httpHandlers.HealthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			logging.LogError("readiness: db not ready", err, logrus.Fields{})
			http.Error(w, "db not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if redisStore != nil {
			if err := redisStore.Ping(r.Context()); err != nil {
				logging.LogError("readiness: redis not ready", err, logrus.Fields{})
				http.Error(w, "redis not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Route("/executions", func(r chi.Router) {
		r.Post("/", h.StartExecutionHandler)
		r.Get("/{name}", h.GetExecutionHandler)
	})
	r.Route("/documents", func(r chi.Router) {
		r.Get("/search", h.SearchDocumentsHandler)
		r.Get("/{id}", h.GetDocumentHandler)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.LogInfo("http server listening", logrus.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.LogError("http server ListenAndServe failed", err, logrus.Fields{"addr": srv.Addr})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logging.LogInfo("shutdown signal received", logrus.Fields{"signal": sig.String()})

	cancel()
	if err := feedConsumer.Close(); err != nil {
		logging.LogError("change-feed consumer close failed", err, logrus.Fields{})
	}
	if err := clickConsumer.Close(); err != nil {
		logging.LogError("clickstream consumer close failed", err, logrus.Fields{})
	}
	if err := sink.Close(); err != nil {
		logging.LogError("batch sink close failed", err, logrus.Fields{})
	} else {
		logging.LogInfo("batch sink flushed and closed", logrus.Fields{})
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logging.LogError("http server shutdown failed", err, logrus.Fields{})
	} else {
		logging.LogInfo("http server shutdown complete", logrus.Fields{})
	}
	logging.LogInfo("bye", logrus.Fields{})
}

func mustPG(ctx context.Context, cfg config.Config) *pgxpool.Pool {
	dbURL := os.Getenv("DATABASE_URL")
	fields := logrus.Fields{}
	if dbURL == "" {
		dbURL = "postgres://" + cfg.DB.User + ":" + cfg.DB.Password + "@" +
			cfg.DB.Host + ":" + cfg.DB.Port + "/" + cfg.DB.Name + "?sslmode=" + cfg.DB.SSLMode
		fields = logrus.Fields{
			"source":  "env/defaults",
			"host":    cfg.DB.Host,
			"port":    cfg.DB.Port,
			"db_name": cfg.DB.Name,
			"user":    cfg.DB.User,
			"sslmode": cfg.DB.SSLMode,
		}
	} else {
		fields = logrus.Fields{"source": "DATABASE_URL"}
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logging.LogError("pgxpool.New failed", err, fields)
		os.Exit(1)
	}
	if _, err := pool.Exec(ctx, search.Schema); err != nil {
		logging.LogError("search schema apply failed", err, fields)
		os.Exit(1)
	}
	logging.LogInfo("pgx pool created", fields)
	return pool
}

func mustKafkaProducer(cfg config.Config) kaf.Producer {
	p, err := kaf.NewProducer(kaf.ProducerConfig{
		Brokers:                cfg.Kafka.Brokers,
		ClientID:               "order-pipeline",
		RequiredAcks:           segmentio.RequireAll,
		BatchBytes:             1 << 20,
		BatchTimeout:           50 * time.Millisecond,
		Compression:            segmentio.Snappy,
		Async:                  false,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	})
	if err != nil {
		logging.LogError("kafka producer create failed", err, logrus.Fields{"brokers": cfg.Kafka.Brokers})
		os.Exit(1)
	}
	logging.LogInfo("kafka producer created", logrus.Fields{"brokers": cfg.Kafka.Brokers, "client_id": "order-pipeline"})
	return p
}

func newConsumer(cfg config.Config, clientID string) kaf.Consumer {
	return kaf.NewConsumer(kaf.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		ClientID:          clientID,
		MinBytes:          1 << 10,
		MaxBytes:          10 << 20,
		MaxWait:           100 * time.Millisecond,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  10 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		StartOffset:       segmentio.FirstOffset,
		MaxBatch:          cfg.Kafka.MaxBatch,
		Backoff:           200 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
	})
}
