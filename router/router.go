package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/vela-games/lfsserver/config"
	"github.com/vela-games/lfsserver/exporter"
	"github.com/vela-games/lfsserver/handlers"
	"github.com/vela-games/lfsserver/lfs"
	"github.com/vela-games/lfsserver/services"
)

type Router struct {
	engine *gin.Engine
}

func NewRouter(cfg *config.Config, logger *log.Logger) Router {
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Unmatched paths, trailing slashes included, fall through to NoRoute.
	engine.RedirectTrailingSlash = false
	engine.Use(gin.Recovery())
	if cfg.DebugMode {
		engine.Use(gin.Logger())
	}
	engine.Use(cors.Default())
	engine.Use(withLogger(logger))

	return Router{
		engine: engine,
	}
}

// InitRoutes mounts the LFS endpoints under cfg.PathPrefix. Requests that
// match no route are answered by the batch facade, which rejects them with
// the LFS error envelope.
func (r Router) InitRoutes(cfg *config.Config, storage lfs.LargeFileStorage) {
	healthHandler := handlers.HealthHandler{Backend: cfg.StorageBackend}
	lfsHandler := handlers.NewLFSHandler(storage, cfg.PathPrefix, cfg.RequestIDHeader)

	group := r.engine.Group(cfg.PathPrefix)
	group.Use(gzip.Gzip(gzip.DefaultCompression))
	group.GET("/health", healthHandler.Get)
	group.POST(lfs.BatchPath, lfsHandler.PostBatch)

	if transfer, ok := services.Transfer(storage); ok {
		transferHandler := handlers.NewTransferHandler(transfer, cfg.RequestIDHeader)
		r.engine.GET(cfg.PathPrefix+"/transfer/:oid", transferHandler.Get)
		r.engine.PUT(cfg.PathPrefix+"/transfer/:oid", transferHandler.Put)
	}

	if cfg.EnablePrometheusExporter {
		r.engine.GET("/metrics", exporter.PrometheusHandler())
	}

	r.engine.NoRoute(lfsHandler.PostBatch)
}

// Handler exposes the engine to hosts that bring their own server.
func (r Router) Handler() http.Handler {
	return r.engine
}

func (r Router) Run(ctx context.Context, portBinding string) error {
	srv := &http.Server{
		Addr:              portBinding,
		Handler:           r.engine,
		IdleTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go r.listen(ctx, srv)
	<-ctx.Done()
	log.FromContext(ctx).Info("shutting down server")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		return err
	}

	return nil
}

func (r Router) listen(ctx context.Context, srv *http.Server) {
	logger := log.FromContext(ctx)
	logger.Info("listening", "addr", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("error trying to listen", "err", err)
	}
}

func withLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(log.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}
