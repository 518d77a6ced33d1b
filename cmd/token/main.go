// Command token issues a bearer token for the editor API, signed with the
// server's JWT_SECRET.
//
//	JWT_SECRET=... token -sub designer-1 -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roomstage/studio/internal/auth"
	"github.com/roomstage/studio/internal/config"
)

var (
	subFlag = flag.String("sub", "", "Token subject (who the token is for)")
	ttlFlag = flag.Duration("ttl", 24*time.Hour, "How long the token stays valid")
)

func main() {
	flag.Parse()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *subFlag == "" {
		slog.Error("-sub is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.NewService(cfg.JWTSecret).IssueToken(*subFlag, *ttlFlag)
	if err != nil {
		slog.Error("issue token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
