package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/dispatch"
	"github.com/autom8ter/notify/entities"
	"github.com/autom8ter/notify/feed/mongofeed"
	"github.com/autom8ter/notify/store/registry"
	"github.com/autom8ter/notify/util"
	"github.com/ghodss/yaml"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/autom8ter/notify/store/inmem"
	_ "github.com/autom8ter/notify/store/redis"
)

type config struct {
	LogLevel string `json:"logLevel"`
	Store    struct {
		Provider string         `json:"provider"`
		Params   map[string]any `json:"params"`
	} `json:"store"`
	Mongo struct {
		URI        string `json:"uri"`
		Database   string `json:"database"`
		Collection string `json:"collection"`
	} `json:"mongo"`
	Kafka struct {
		Brokers []string `json:"brokers"`
		Source  string   `json:"source"`
	} `json:"kafka"`
	EntitiesAPI struct {
		BaseURL string `json:"baseUrl"`
	} `json:"entitiesApi"`
	HTTPTimeout time.Duration   `json:"httpTimeout"`
	Flags       map[string]bool `json:"flags"`
	Pipeline    notify.Config   `json:"pipeline"`
}

func loadConfig(path string) (config, error) {
	bits, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(bits, &raw); err != nil {
		return config{}, err
	}
	var cfg config
	if err := util.Decode(raw, &cfg); err != nil {
		return config{}, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "inmem"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.Kafka.Source == "" {
		cfg.Kafka.Source = "notifyd"
	}
	// env vars override file values for the secrets-bearing settings
	if uri := os.Getenv("NOTIFY_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if addr := os.Getenv("NOTIFY_REDIS_ADDR"); addr != "" {
		if cfg.Store.Params == nil {
			cfg.Store.Params = map[string]any{}
		}
		cfg.Store.Params["addr"] = addr
	}
	if password := os.Getenv("NOTIFY_REDIS_PASSWORD"); password != "" {
		if cfg.Store.Params == nil {
			cfg.Store.Params = map[string]any{}
		}
		cfg.Store.Params["password"] = password
	}
	if brokers := os.Getenv("NOTIFY_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	logger, err := notify.NewLogger(cfg.LogLevel, map[string]any{
		"service": "notifyd",
	})
	if err != nil {
		return err
	}
	s, err := registry.Open(cfg.Store.Provider, cfg.Store.Params)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	dispatchers := notify.Dispatchers{
		"webhook": dispatch.NewWebhook(httpClient, logger),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Balancer: &kafka.LeastBytes{},
		}
		defer writer.Close()
		dispatchers["event"] = dispatch.NewEvent(writer, cfg.Kafka.Source, logger)
	}

	pipelineConfig := cfg.Pipeline
	if pipelineConfig.Source.DbName == "" {
		pipelineConfig.Source = notify.ChangeSource{
			DbName:   cfg.Mongo.Database,
			CollName: cfg.Mongo.Collection,
		}
	}
	flags := cfg.Flags
	if flags == nil {
		defaults := notify.DefaultConfig(pipelineConfig.Source)
		flags = map[string]bool{
			defaults.WatcherFlag: true,
			defaults.PrimaryFlag: true,
			defaults.RetryFlag:   true,
		}
	}
	pipeline, err := notify.NewPipeline(notify.PipelineParams{
		Config:      pipelineConfig,
		Store:       s,
		Opener:      mongofeed.NewOpener(coll),
		Dispatchers: dispatchers,
		Finder:      entities.NewClient(cfg.EntitiesAPI.BaseURL, httpClient),
		Flags:       notify.NewMemoryFlags(flags),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "pipeline starting", map[string]any{
		"db":    cfg.Mongo.Database,
		"coll":  cfg.Mongo.Collection,
		"store": cfg.Store.Provider,
	})
	return pipeline.Run(ctx)
}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "notifyd",
		Short: "change data capture notification pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "notifyd.yaml", "path to the yaml config file")
	if err := cmd.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
