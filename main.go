package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"badminton-data-system/handlers"
	"badminton-data-system/models"
	"badminton-data-system/services"
	"badminton-data-system/store"
	"badminton-data-system/utils"
	"badminton-data-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	username := os.Getenv("HTH_USER")
	password := os.Getenv("HTH_PASS")
	if username == "" || password == "" {
		log.Fatal("HTH_USER and HTH_PASS environment variables not set")
	}

	dataDir := envOr("DATA_DIR", "./data")
	province := envOr("PROVINCE", "广东省")
	city := envOr("CITY", "广州市")
	sportsID := envInt("SPORTS_ID", 1) // badminton
	recencyDays := envInt("RECENCY_DAYS", 365)
	syncHourUTC := envInt("SYNC_HOUR_UTC", 21) // 05:00 Beijing
	port := envOr("PORT", "5300")

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	st := store.New(dataDir, city)
	if err := st.Init(); err != nil {
		log.Fatal("failed to initialize store:", err)
	}

	client := services.NewUpstreamClient()
	authService := services.NewAuthService(username, password, client, st)
	discovery := services.NewDiscoveryService(client, sportsID, province, city, recencyDays)
	harvester := services.NewHarvesterService(client, services.LogProgress)
	syncService := services.NewSyncService(authService, discovery, harvester, st)
	queryService := services.NewQueryService(st, clockwork.NewRealClock(),
		models.ParseLevelTable(os.Getenv("AGE_LEVEL_TABLE")))

	syncService.OnPersist(func() {
		queryService.Invalidate()
		if !utils.PublishingEnabled() {
			return
		}
		for _, path := range []string{st.RankingsPath(), st.MatchesPath()} {
			if key, err := utils.PublishSnapshot(path, city); err != nil {
				log.Printf("❌ [PUBLISH] FAILED TO PUBLISH SNAPSHOT: %v", err)
			} else if key != "" {
				log.Printf("☁️  [PUBLISH] uploaded %s", key)
			}
		}
	})

	app := fiber.New(fiber.Config{
		AppName: "badminton-data-system",
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(allowedOriginsList, ","),
		AllowMethods: "GET,OPTIONS,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Cache-Control",
		MaxAge:       86400,
	}))

	handlers.SetupQueryRoutes(app, queryService)

	// Raw snapshot files for clients that filter on their own side.
	app.Static("/data", dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keepalive := workers.NewKeepaliveWorker(authService)
	keepalive.Start(ctx)

	// Startup sync: skip the harvest when everything is still fresh, but
	// refresh the token either way.
	go func() {
		if authService.IsFresh(time.Now()) {
			log.Println("⏩ Skipping startup harvest, refreshing token only...")
			if err := authService.Login(ctx); err != nil {
				log.Printf("⚠️  Startup token refresh failed: %v", err)
			}
			return
		}
		log.Println("⚡ Running startup sync cycle...")
		if err := syncService.RunCycle(ctx); err != nil {
			log.Printf("⛔ Startup sync failed: %v", err)
		}
	}()

	sched, err := syncService.StartDailySchedule(syncHourUTC)
	if err != nil {
		log.Fatal("failed to start daily schedule:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Daily sync scheduled at %02d:00 UTC", syncHourUTC)
	log.Println("✅ Token keepalive running (every 2h)")
	log.Printf("✅ Region: %s %s, recency window %d days", province, city, recencyDays)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
