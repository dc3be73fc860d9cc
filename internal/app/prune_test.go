package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"anchor-router/internal/config"
)

func TestPruneRequiresCutoff(t *testing.T) {
	a := NewApp(&config.Config{}, zerolog.Nop())

	err := a.Prune(context.Background(), PruneOptions{})
	if err == nil || !strings.Contains(err.Error(), "--before or --older-than") {
		t.Fatalf("missing cutoff should fail, got %v", err)
	}
}

func TestPruneRequiresDatabase(t *testing.T) {
	a := NewApp(&config.Config{}, zerolog.Nop())

	err := a.Prune(context.Background(), PruneOptions{OlderThan: 720 * time.Hour})
	if err == nil || !strings.Contains(err.Error(), "database not configured") {
		t.Fatalf("missing DSN should fail, got %v", err)
	}

	err = a.Prune(context.Background(), PruneOptions{Before: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)})
	if err == nil || !strings.Contains(err.Error(), "database not configured") {
		t.Fatalf("explicit --before without DSN should fail, got %v", err)
	}
}
