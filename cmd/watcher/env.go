package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/obslog"
)

func obslogMust() (*zap.Logger, error) {
	dev := os.Getenv("ENV") == "development"
	return obslog.New("watcher", dev)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "watcher: required environment variable %s is not set\n", key)
		os.Exit(1)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
