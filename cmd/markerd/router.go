package main

import (
	"net/http"

	"github.com/OCAP2/locationmarker/internal/dispatcher"
	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/internal/monitor"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/OCAP2/locationmarker/pkg/streaming"
	"github.com/gin-gonic/gin"
)

const maxCameraBody = 4096

type routerDeps struct {
	Hub        http.Handler
	Dispatcher *dispatcher.Dispatcher
	Viewport   *geo.Viewport
	Geometry   func() core.MarkerGeometry
	Monitor    *monitor.Service // nil when the status monitor is disabled
	Logger     dispatcher.Logger
	Release    bool
}

// newRouter serves render clients: the websocket hub, plain HTTP camera
// changes for clients without a socket, and read-only views of the marker.
func newRouter(deps routerDeps) *gin.Engine {
	if deps.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())

	r.GET("/ws", gin.WrapH(deps.Hub))
	r.POST("/camera", cameraHandler(deps.Dispatcher, deps.Viewport, deps.Logger))

	r.GET("/geometry", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Geometry())
	})
	r.GET("/status", func(c *gin.Context) {
		if deps.Monitor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status monitor disabled"})
			return
		}
		c.JSON(http.StatusOK, deps.Monitor.GetStatus())
	})
	return r
}

// cameraHandler accepts a CameraPayload and re-projects the marker
func cameraHandler(d *dispatcher.Dispatcher, v *geo.Viewport, logger dispatcher.Logger) gin.HandlerFunc {
	delegate := dispatchDelegate{d: d, logger: logger}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCameraBody)

		var req streaming.CameraPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera payload"})
			return
		}
		if err := applyCamera(v, req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		delegate.dispatch(dispatcher.CommandProjection, nil)
		c.Status(http.StatusNoContent)
	}
}
