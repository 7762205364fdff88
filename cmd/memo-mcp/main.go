// Command memo-mcp exposes saved lectures to MCP clients over stdio.
package main

import (
	"flag"
	"log"

	"github.com/memoapp/memo/internal/config"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/mcpserver"
)

func main() {
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	// stdout carries the protocol; log goes to stderr.
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	store, err := db.OpenReadOnly(cfg.DBPath)
	if err != nil {
		log.Fatalf("[ERROR] open lectures: %v", err)
	}
	defer store.Close()

	if err := mcpserver.Serve(store); err != nil {
		log.Fatalf("[ERROR] mcp: %v", err)
	}
}
