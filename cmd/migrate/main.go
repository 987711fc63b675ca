package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ciguard/ciguard/internal/store/postgres"
)

// Standalone migration runner: applies the embedded schema to whatever
// connection string it is given. `ciguard-server migrate` does the same
// but needs the full server environment; this one only needs a DSN.
func main() {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		connStr = os.Args[1]
	}
	if connStr == "" {
		log.Fatal("Usage: migrate <connection-string> (or set DATABASE_URL)")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping: %v", err)
	}

	fmt.Println("✓ Connected to database")

	fmt.Println("Applying initial schema...")
	if _, err := db.ExecContext(ctx, postgres.InitialSchema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	fmt.Println("✓ initial schema applied")

	fmt.Println("\n✓✓✓ All migrations completed successfully!")
}
