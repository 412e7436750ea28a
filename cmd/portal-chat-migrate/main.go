package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/kgellert/portal-chat/internal/storage/migrations"
	storage "github.com/kgellert/portal-chat/internal/storage/postgres"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		log.Println("No .env file found, skipping...")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := storage.New(context.Background(), dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := migrations.Up(db.DB); err != nil {
			log.Fatal(err)
		}
		log.Println("Migration up successful")
	case "down":
		if err := migrations.Down(db.DB); err != nil {
			log.Fatal(err)
		}
		log.Println("Migration down successful")
	case "version":
		v, dirty, err := migrations.Version(db.DB)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("version %d, dirty %t", v, dirty)
	default:
		log.Fatalf("unknown command %q, want up, down or version", cmd)
	}
}
