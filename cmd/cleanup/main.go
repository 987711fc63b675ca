package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// Purges API tokens that can never authenticate again: revoked ones and
// ones past their expiry. Listings and audit logs keep working, they just
// stop showing tokens nobody can use.
func main() {
	url := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "Usage: cleanup <connection-string> (or set DATABASE_URL)")
		os.Exit(1)
	}

	conn, err := pgx.Connect(context.Background(), url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(context.Background())

	tag, err := conn.Exec(context.Background(),
		"DELETE FROM api_tokens WHERE is_revoked OR (expires_at IS NOT NULL AND expires_at < NOW())")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Purged %d dead API tokens.\n", tag.RowsAffected())
}
