package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Messaging gateway (WhatsApp Business API compatible)
	WhatsAppURL   string
	WhatsAppToken string

	// AI agent gateway
	AIGatewayURL string
	AIGatewayKey string

	// Cron spec for the scheduled-automation sweep
	SchedulerSpec string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("DB_NAME", "crmflow"),
		SkipAuth:      getEnv("SKIP_AUTH", "false") == "true",
		Environment:   getEnv("ENVIRONMENT", "development"),
		AppId:         getEnv("APP_ID", "crmflow"),
		WhatsAppURL:   getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
		WhatsAppToken: getEnv("WHATSAPP_TOKEN", ""),
		AIGatewayURL:  getEnv("AI_GATEWAY_URL", "https://api.openai.com/v1"),
		AIGatewayKey:  getEnv("AI_GATEWAY_KEY", ""),
		SchedulerSpec: getEnv("SCHEDULER_SPEC", "@every 1m"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
