package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/nocdn/mcqsr/internal/app"
	"github.com/nocdn/mcqsr/internal/store"
)

func main() {
	cfg := app.LoadConfig()

	st, err := store.Open(context.Background(), cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Printf("store error: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	r := app.NewRouter(cfg, st)

	log.Printf("mcqsr web listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
