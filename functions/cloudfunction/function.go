// Package cloudfunction registers the batch endpoint with the Google Cloud
// Functions framework. The function is configured from the environment like
// the server, with APP_STORAGE_BACKEND defaulting to gcs.
package cloudfunction

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vela-games/lfsserver/config"
	"github.com/vela-games/lfsserver/lfs"
	"github.com/vela-games/lfsserver/logging"
	"github.com/vela-games/lfsserver/router"
	"github.com/vela-games/lfsserver/services"
)

func init() {
	functions.HTTP("Batch", Batch)
}

var (
	handler   http.Handler
	setupErr  error
	setupOnce sync.Once
)

func setup() {
	if _, ok := os.LookupEnv("APP_STORAGE_BACKEND"); !ok {
		os.Setenv("APP_STORAGE_BACKEND", config.BackendGCS) //nolint:errcheck
	}

	cfg, err := config.GetConfig(nil)
	if err != nil {
		setupErr = err
		return
	}

	logger := logging.NewLogger(cfg)
	ctx := log.WithContext(context.Background(), logger)

	storage, err := services.NewStorage(ctx, cfg)
	if err != nil {
		setupErr = err
		return
	}

	r := router.NewRouter(cfg, logger)
	r.InitRoutes(cfg, storage)
	handler = r.Handler()
}

// Batch is the HTTP function entry point.
func Batch(w http.ResponseWriter, r *http.Request) {
	setupOnce.Do(setup)

	if setupErr != nil {
		log.Error("function setup failed", "err", setupErr)

		code, response := lfs.NewErrorResponse(setupErr, uuid.NewString())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response) //nolint:errcheck
		return
	}

	handler.ServeHTTP(w, r)
}
