// Package main - утилита управления миграциями базы данных.
//
// Использование:
//
//	migrate -action=up      применить все ожидающие миграции
//	migrate -action=down    откатить последнюю миграцию
//	migrate -action=status  показать состояние миграций
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/postgres"
)

func main() {
	action := flag.String("action", "status", "migration action: up, down, status")
	timeout := flag.Duration("timeout", 2*time.Minute, "operation timeout")
	flag.Parse()

	if err := run(*action, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(action string, timeout time.Duration) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := postgres.NewConnectionFromURL(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	migrator := postgres.NewMigrator(conn)

	switch action {
	case "up":
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		fmt.Println("migrations applied")

	case "down":
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Println("last migration rolled back")

	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		for _, m := range status {
			state := "pending"
			if m.IsApplied {
				state = "applied"
			}
			fmt.Printf("%3d  %-30s %s\n", m.Version, m.Name, state)
		}

	default:
		return fmt.Errorf("unknown action %q (expected up, down or status)", action)
	}

	return nil
}
