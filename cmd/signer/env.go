package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/obslog"
)

func obslogMust() (*zap.Logger, error) {
	dev := os.Getenv("ENV") == "development"
	return obslog.New("signer", dev)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "signer: required environment variable %s is not set\n", key)
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

func mustParseAmount(key string) amount.Micro {
	m, err := amount.Parse(mustEnv(key))
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	return m
}

func mustParseInt(key string) int64 {
	n, err := strconv.ParseInt(mustEnv(key), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	return n
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
