// Package config provides centralized configuration for BiomeBridge.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func init() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}
}

// getEnvInt reads environment variable with fallback to default
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvString reads environment variable with string fallback
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// Server configuration
var (
	Port       = getEnvString("PORT", "3001")
	CORSOrigin = getEnvString("CORS_ORIGIN", "")
)

// Backend (headless CMS) configuration
var (
	BackendURL   = getEnvString("BACKEND_URL", getEnvString("STRAPI_URL", ""))
	BackendToken = getEnvString("BACKEND_API_TOKEN", getEnvString("STRAPI_API_TOKEN", ""))
)

// Payment gateway configuration
var (
	GatewayMerchantID = getEnvString("GATEWAY_MERCHANT_ID", "")
	GatewayPassphrase = getEnvString("GATEWAY_PASSPHRASE", "")
	GatewayAPIURL     = getEnvString("GATEWAY_API_URL", "https://api.payfast.co.za")
	GatewayAPIVersion = getEnvString("GATEWAY_API_VERSION", "v1")
)

// BiomePolicy decides what happens when a notification names a biome the
// backend has never seen: "create" auto-creates it, "reject" fails the
// notification with a 404. The source system never settled this; it is
// configuration here.
var BiomePolicy = getEnvString("BIOME_POLICY", "create")

// Idempotency ledger configuration. A remote libsql URL takes precedence;
// otherwise a local SQLite file is used.
var (
	LedgerURL       = getEnvString("LEDGER_DATABASE_URL", "")
	LedgerAuthToken = getEnvString("LEDGER_AUTH_TOKEN", "")
	LedgerPath      = getEnvString("LEDGER_PATH", "./biomebridge.db")
)

// FieldMapPath optionally points at a YAML file overriding the default
// gateway-field to domain-attribute mapping.
var FieldMapPath = getEnvString("FIELD_MAP_PATH", "")

// Admin/auth configuration
var (
	JWTSecret         = getEnvString("JWT_SECRET", "")
	AdminPassword     = getEnvString("ADMIN_PASSWORD", "")
	AdminPasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")
)

// HTTP client timeouts (seconds)
var (
	BackendTimeoutSeconds = getEnvInt("BACKEND_TIMEOUT_SECONDS", 15)
	GatewayTimeoutSeconds = getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15)
)
