package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Wipes all ciguard data from a development database. The schema stays;
// run `ciguard-server bootstrap` afterwards to re-seed the first strategy
// and token.
func main() {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		connStr = os.Args[1]
	}
	if connStr == "" {
		log.Fatal("Usage: clean-db <connection-string> (or set DATABASE_URL)")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("Cleaning database...")

	tables := []string{
		"api_tokens",
		"authorization_configs",
		"external_admins",
	}

	for _, table := range tables {
		_, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			fmt.Printf("Warning: failed to truncate %s: %v\n", table, err)
		} else {
			fmt.Printf("✓ Cleared %s\n", table)
		}
	}

	fmt.Println("\nDone. Run `ciguard-server bootstrap` to re-seed.")
}
