package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/platform/gcal"
	"github.com/yungbote/studyhub-backend/internal/platform/gcp"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/platform/openai"
	"github.com/yungbote/studyhub-backend/internal/platform/redisx"
	"github.com/yungbote/studyhub-backend/internal/platform/sendgrid"
	"github.com/yungbote/studyhub-backend/internal/realtime"
	"github.com/yungbote/studyhub-backend/internal/realtime/bus"
)

// Clients holds external integrations. Optional ones are nil (or disabled) when their
// environment is not configured.
type Clients struct {
	Redis    goredis.UniversalClient
	Cache    *redisx.Cache
	SSEBus   realtime.Bus
	Bucket   gcp.BucketService
	LLM      *openai.Client
	SendGrid sendgrid.Client
	Calendar gcal.Client
	Mail     *mail.Renderer
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	rcfg := redisx.ConfigFromEnv()
	rdb, err := redisx.New(ctx, log, rcfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	var sseBus realtime.Bus
	if rdb != nil {
		sseBus, err = bus.NewRedisBus(log, rdb, rcfg.KeyPrefix+":sse")
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
	}
	clients := Clients{
		Redis:  rdb,
		Cache:  redisx.NewCache(rdb, rcfg.KeyPrefix),
		SSEBus: sseBus,
	}

	// Gcs
	scfg, err := gcp.ObjectStorageConfigFromEnv()
	if err != nil {
		clients.Close()
		return Clients{}, fmt.Errorf("object storage config: %w", err)
	}
	clients.Bucket, err = gcp.NewBucketService(ctx, log, scfg)
	if err != nil {
		clients.Close()
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	// Openai
	if ocfg := openai.ConfigFromEnv(); ocfg.APIKey != "" {
		clients.LLM, err = openai.New(log, ocfg)
		if err != nil {
			clients.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
	} else {
		log.Warn("OPENAI_API_KEY not set; assistant disabled")
	}

	// SendGrid
	clients.SendGrid, err = sendgrid.NewFromEnv(log)
	if err != nil {
		clients.Close()
		return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
	}

	// Google Calendar
	gcfg := gcal.ConfigFromEnv()
	if !gcfg.Enabled() {
		log.Warn("Google Calendar not configured; calendar sync disabled")
	}
	clients.Calendar = gcal.New(log, gcfg)

	clients.Mail = mail.NewRenderer(cfg.AppName, cfg.FrontendURL)
	return clients, nil
}

func (c Clients) Close() {
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
