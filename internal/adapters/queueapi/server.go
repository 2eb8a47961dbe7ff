// Package queueapi serves the build queue over HTTP as JSON.
package queueapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/makeomatic/internal/domain/buildstatus"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Lister lists queued builds by status.
type Lister interface {
	List(ctx context.Context, status buildstatus.Status) ([]*buildstatus.Build, error)
}

// NewRouter creates the routes:
//
//	GET /healthz
//	GET /builds?status=<name>   builds in a status, "new" by default
//	GET /builds/next            the build that runs next, 204 if none
func NewRouter(q Lister) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/builds", func(c *gin.Context) {
		status := buildstatus.StatusNewRevision
		if name := c.Query("status"); name != "" {
			parsed, err := buildstatus.ParseStatus(name)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = parsed
		}
		builds, err := q.List(c.Request.Context(), status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "builds": builds})
	})

	r.GET("/builds/next", func(c *gin.Context) {
		builds, err := q.List(c.Request.Context(), buildstatus.StatusNewRevision)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(builds) == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, builds[0])
	})

	return r
}

// Serve runs the router on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, q Lister) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(q),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	ports.Log(ctx, ports.LevelInfo, "serving build queue", ports.F("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
