package app

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type Config struct {
	Environment string
	Version     string
	Port        string

	RunServer bool
	RunWorker bool

	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CookieName   string
	CookieDomain string
	CookieSecure bool
	CORSOrigins  []string

	AppName     string
	FrontendURL string

	CalendarReturnURL   string
	CalendarStateSecret string

	AssistantDailyLimit int
}

// loadDotEnv reads .env when present. Real environment variables always win.
func loadDotEnv(log *logger.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "error", err)
	}
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		Port:        envutil.String("PORT", "8080"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL:  envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: envutil.Seconds("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		CookieName:   envutil.String("SESSION_COOKIE_NAME", "studyhub_session"),
		CookieDomain: envutil.String("SESSION_COOKIE_DOMAIN", ""),
		CookieSecure: envutil.Bool("SESSION_COOKIE_SECURE", false),
		CORSOrigins:  envutil.CSV("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		AppName:     envutil.String("APP_NAME", "StudyHub"),
		FrontendURL: envutil.String("FRONTEND_URL", "http://localhost:5173"),

		CalendarReturnURL:   envutil.String("CALENDAR_RETURN_URL", ""),
		CalendarStateSecret: envutil.String("CALENDAR_STATE_SECRET", ""),

		AssistantDailyLimit: envutil.Int("ASSISTANT_DAILY_LIMIT", 50),
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; using an insecure development secret")
		cfg.JWTSecretKey = "studyhub-dev-secret"
	}
	if cfg.CalendarStateSecret == "" {
		cfg.CalendarStateSecret = cfg.JWTSecretKey
	}
	if cfg.CalendarReturnURL == "" {
		cfg.CalendarReturnURL = cfg.FrontendURL + "/settings"
	}
	if !cfg.RunServer && !cfg.RunWorker {
		log.Warn("RUN_SERVER and RUN_WORKER both false; enabling the server")
		cfg.RunServer = true
	}
	return cfg
}
