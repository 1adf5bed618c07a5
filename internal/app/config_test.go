package app

import (
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"JWT_SECRET_KEY", "CALENDAR_STATE_SECRET", "CALENDAR_RETURN_URL", "FRONTEND_URL", "RUN_SERVER", "RUN_WORKER", "ACCESS_TOKEN_TTL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.NewNop())

	if cfg.JWTSecretKey == "" {
		t.Fatalf("expected a development JWT secret")
	}
	if cfg.CalendarStateSecret != cfg.JWTSecretKey {
		t.Fatalf("calendar state secret should fall back to the JWT secret")
	}
	if cfg.CalendarReturnURL != "http://localhost:5173/settings" {
		t.Fatalf("CalendarReturnURL=%q", cfg.CalendarReturnURL)
	}
	if !cfg.RunServer || !cfg.RunWorker {
		t.Fatalf("server and worker should both run by default")
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("AccessTokenTTL=%v", cfg.AccessTokenTTL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "600")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RUN_SERVER", "false")
	t.Setenv("RUN_WORKER", "false")
	t.Setenv("ASSISTANT_DAILY_LIMIT", "5")

	cfg := LoadConfig(logger.NewNop())
	if cfg.JWTSecretKey != "s3cret" || cfg.AccessTokenTTL != 10*time.Minute {
		t.Fatalf("unexpected auth config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins=%v", cfg.CORSOrigins)
	}
	// Disabling both roles would leave the process idle.
	if !cfg.RunServer || cfg.RunWorker {
		t.Fatalf("RunServer=%v RunWorker=%v", cfg.RunServer, cfg.RunWorker)
	}
	if cfg.AssistantDailyLimit != 5 {
		t.Fatalf("AssistantDailyLimit=%d", cfg.AssistantDailyLimit)
	}
}
