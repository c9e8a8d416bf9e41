// Command seed inserts demo marketplace data into a Supabase project so a
// fresh environment has requests to work with.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	gatewaysb "github.com/CollabMarket/collab_engine/internal/app/gateway/supabase"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

func main() {
	var (
		envFile    = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_ANON_KEY")
		businessID = flag.String("business", "demo-business", "Business user ID to seed requests for")
		count      = flag.Int("count", 5, "Number of requests to create")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("load env (%s): %v", *envFile, err)
	}

	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_ANON_KEY")
	if url == "" || key == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}

	gw, err := gatewaysb.New(gatewaysb.Config{URL: url, APIKey: key}, logger.NewDefault("seed"))
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	serviceTypes := []collab.ServiceType{
		collab.ServicePost,
		collab.ServiceStory,
		collab.ServiceReel,
		collab.ServiceVideo,
		collab.ServiceShort,
	}
	platforms := []collab.Platform{
		collab.PlatformInstagram,
		collab.PlatformYouTube,
		collab.PlatformTikTok,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < *count; i++ {
		now := time.Now().UTC()
		req := collab.Request{
			ID:           uuid.NewString(),
			BusinessID:   *businessID,
			InfluencerID: uuid.NewString(),
			ServiceType:  serviceTypes[i%len(serviceTypes)],
			Platform:     platforms[i%len(platforms)],
			Description:  "Seeded demo request",
			Price:        int64(1000 * (i + 1)),
			Currency:     "USD",
			Status:       collab.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created, err := gw.CreateRequest(ctx, req)
		if err != nil {
			log.Fatalf("create request %d: %v", i+1, err)
		}
		log.Printf("created request %s (%s on %s, %d %s)",
			created.ID, created.ServiceType, created.Platform, created.Price, created.Currency)
	}
}
