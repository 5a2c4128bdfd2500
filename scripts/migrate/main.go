package main

import (
	"flag"
	"log"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/johnquangdev/meeting-calls/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-calls/pkg/config"
)

func main() {
	dir := flag.String("dir", database.MigrationsDir, "directory holding the sql-migrate files")
	down := flag.Bool("down", false, "roll back instead of applying")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	log.Println("✅ Database connected successfully")

	direction := migrate.Up
	if *down {
		direction = migrate.Down
		log.Printf("⏪ Rolling back migrations from %s/ ...", *dir)
	} else {
		log.Printf("🔄 Applying migrations from %s/ ...", *dir)
	}

	n, err := database.Migrate(db, *dir, direction)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("✅ Successfully ran %d migration(s)!\n", n)
}
