package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/obslog"
)

func obslogMust() (*zap.Logger, error) {
	dev := os.Getenv("ENV") == "development"
	return obslog.New("coordinator", dev)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "coordinator: required environment variable %s is not set\n", key)
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
