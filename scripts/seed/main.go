package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-calls/internal/adapter/repository"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-calls/pkg/config"
	pkgjwt "github.com/johnquangdev/meeting-calls/pkg/jwt"
)

// Fixed ids so tokens printed by earlier runs keep working
var testProfiles = []entities.Profile{
	{ID: uuid.MustParse("6a1f0a3e-0c1d-4f55-9c1e-000000000001"), Name: "Alice", DisplayName: "Alice", Email: "alice@test.local"},
	{ID: uuid.MustParse("6a1f0a3e-0c1d-4f55-9c1e-000000000002"), Name: "Bob", DisplayName: "Bob", Email: "bob@test.local"},
	{ID: uuid.MustParse("6a1f0a3e-0c1d-4f55-9c1e-000000000003"), Name: "Charlie", Email: "charlie@test.local"},
	{ID: uuid.MustParse("6a1f0a3e-0c1d-4f55-9c1e-000000000004"), Name: "Diana", DisplayName: "Di", Email: "diana@test.local"},
}

func main() {
	log.Println("🚀 Seeding test profiles...")

	// Load configuration from .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	profiles := repository.NewProfileRepository(db)
	jwtManager := pkgjwt.NewManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)
	ctx := context.Background()

	for i := range testProfiles {
		p := testProfiles[i]
		if err := profiles.Upsert(ctx, &p); err != nil {
			log.Printf("❌ Failed to upsert profile %s: %v", p.Email, err)
			continue
		}

		accessToken, err := jwtManager.GenerateAccessToken(p.ID, p.Email, "participant")
		if err != nil {
			log.Printf("❌ Failed to generate access token for %s: %v", p.Email, err)
			continue
		}

		fmt.Printf("═══════════════════════════════════════════════════════════════\n")
		fmt.Printf("🟢 Profile %d: %s\n", i+1, p.DisplayInfo().Label)
		fmt.Printf("═══════════════════════════════════════════════════════════════\n")
		fmt.Printf("Email:        %s\n", p.Email)
		fmt.Printf("User ID:      %s\n", p.ID)
		fmt.Printf("\n📋 Access Token (expires in %v):\n", cfg.JWT.AccessExpiry)
		fmt.Printf("%s\n", accessToken)
		fmt.Printf("───────────────────────────────────────────────────────────────\n\n")
	}

	log.Println("✅ Test profiles ready!")
	log.Println("\n💡 Usage:")
	log.Println("   1. POST /v1/sessions with header Authorization: Bearer <access_token>")
	log.Println("   2. Open ws://<host>/v1/calls/stream?access_token=<access_token> to watch signals")
}
