package main

import (
	"log"
	"time"

	"github.com/BiomeFund/biomebridge-go/api"
	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/config"
	"github.com/BiomeFund/biomebridge-go/email"
	"github.com/BiomeFund/biomebridge-go/gateway"
	"github.com/BiomeFund/biomebridge-go/itn"
	"github.com/BiomeFund/biomebridge-go/services"
	"github.com/BiomeFund/biomebridge-go/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	if config.BackendURL == "" || config.BackendToken == "" {
		log.Fatal("BACKEND_URL and BACKEND_API_TOKEN are required")
	}

	backend := cms.NewClient(config.BackendURL, config.BackendToken,
		time.Duration(config.BackendTimeoutSeconds)*time.Second)

	fields := itn.DefaultFieldMap()
	if config.FieldMapPath != "" {
		loaded, err := itn.LoadFieldMap(config.FieldMapPath)
		if err != nil {
			log.Fatalf("Failed to load field map: %v", err)
		}
		fields = loaded
		log.Printf("Loaded field map from %s", config.FieldMapPath)
	}
	normalizer := itn.NewNormalizer(fields)

	ledger, err := store.Open(store.Config{
		URL:       config.LedgerURL,
		AuthToken: config.LedgerAuthToken,
		Path:      config.LedgerPath,
	})
	if err != nil {
		log.Fatalf("Failed to open idempotency ledger: %v", err)
	}
	defer ledger.Close()
	log.Printf("Idempotency ledger: %s", ledger.ConnectionInfo())

	hub := api.NewActivityHub()
	go hub.Run()

	opts := services.PipelineOptions{
		CreateMissingBiomes: config.BiomePolicy != "reject",
		Ledger:              ledger,
		Notify:              hub.Broadcast,
	}
	if receipts, err := email.NewClient(); err == nil {
		opts.Receipts = receipts
		log.Println("Donation receipt emails enabled")
	}
	pipeline := services.NewPipeline(backend, normalizer, opts)

	gw := gateway.NewClient(config.GatewayMerchantID, config.GatewayPassphrase,
		config.GatewayAPIURL, config.GatewayAPIVersion,
		time.Duration(config.GatewayTimeoutSeconds)*time.Second)

	r := gin.New()
	r.Use(api.FilteredLogger(), gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if config.CORSOrigin != "" {
		allowedOrigins = append(allowedOrigins, config.CORSOrigin)
	} else if config.BackendURL != "" {
		allowedOrigins = append(allowedOrigins, config.BackendURL)
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))

	r.POST("/process-itn", api.ProcessITNHandler(pipeline))
	r.POST("/cancel-subscription", api.CancelSubscriptionHandler(gw))
	r.GET("/health", api.HealthHandler)
	r.GET("/ws/activity", api.ActivityWSHandler(hub))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", api.LoginHandler)
		v1.GET("/status", api.RequireAdmin(), api.StatusHandler(pipeline, ledger.ConnectionInfo()))
	}

	log.Printf("Starting ITN handler on :%s (biome policy: %s)", config.Port, config.BiomePolicy)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
