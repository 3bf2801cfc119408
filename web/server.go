package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/b1naryth1ef/livemap"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type ServerOpts struct {
	TilePath  string
	WarpsPath string

	// UpdateInterval is how often clients poll or are pushed updates.
	UpdateInterval time.Duration

	// TileCacheBytes bounds the in-memory tile image cache.
	TileCacheBytes int64
}

// Server serves rendered tiles, the update feed and the embedded frontend.
type Server struct {
	opts     ServerOpts
	manager  *livemap.Manager
	markers  *livemap.MarkerStore
	tiles    *ristretto.Cache[string, []byte]
	index    *template.Template
	upgrader websocket.Upgrader
	engine   *gin.Engine
	log      *logrus.Entry
}

func NewServer(opts ServerOpts, manager *livemap.Manager, markers *livemap.MarkerStore) (*Server, error) {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = time.Second
	}
	if opts.TileCacheBytes <= 0 {
		opts.TileCacheBytes = 64 << 20
	}

	tiles, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100000,
		MaxCost:     opts.TileCacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}

	index, err := template.New("index.html").Parse(GetIndexHTML())
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}

	s := &Server{
		opts:    opts,
		manager: manager,
		markers: markers,
		tiles:   tiles,
		index:   index,
		log:     logrus.WithField("component", "web"),
	}

	manager.OnRender(func(c livemap.TileCoord) {
		s.tiles.Del(c.Name())
	})

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.routes(s.engine)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(e *gin.Engine) {
	e.GET("/", s.handleIndex)
	e.StaticFS("/static", http.FS(GetStaticContent()))
	e.GET("/tiles/:name", s.handleTile)
	e.GET("/up/:since", s.handleUpdates)
	e.GET("/status", s.handleStatus)
	e.GET("/markers", s.handleMarkers)
	e.GET("/warps", s.handleWarps)
	e.GET("/ws", s.handleStream)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errs := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.tiles.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).Milliseconds(),
		}).Debug("request")
	}
}

func (s *Server) frontendData() FrontendData {
	warps, err := livemap.LoadWarps(s.opts.WarpsPath)
	if err != nil {
		s.log.Warnf("failed to load warps: %v", err)
		warps = []livemap.Warp{}
	}
	return FrontendData{
		TileWidth:      livemap.TileWidth,
		TileHeight:     livemap.TileHeight,
		UpdateInterval: int(s.opts.UpdateInterval.Milliseconds()),
		Markers:        s.markers.List(),
		Warps:          warps,
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	data, err := json.Marshal(s.frontendData())
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.index.Execute(c.Writer, string(data)); err != nil {
		s.log.Warnf("failed to render index: %v", err)
	}
}

func (s *Server) handleTile(c *gin.Context) {
	coord, err := livemap.ParseTileName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := coord.Name()

	data, ok := s.tiles.Get(name)
	if !ok {
		readStart := time.Now()
		data, err = os.ReadFile(filepath.Join(s.opts.TilePath, name+".png"))
		if errors.Is(err, os.ErrNotExist) {
			c.Status(http.StatusNotFound)
			return
		}
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		s.cacheTile(coord, data, readStart)
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", data)
}

// cacheTile stores an image read at readStart unless the tile has rendered
// since. Renders record history before the OnRender hook evicts, so a read
// that raced a render is either skipped here or evicted by the hook.
func (s *Server) cacheTile(coord livemap.TileCoord, data []byte, readStart time.Time) bool {
	for _, u := range s.manager.UpdatesSince(readStart) {
		if u.Tile == coord {
			return false
		}
	}
	return s.tiles.Set(coord.Name(), data, int64(len(data)))
}

func (s *Server) handleUpdates(c *gin.Context) {
	since, err := strconv.ParseInt(c.Param("since"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp"})
		return
	}

	c.JSON(http.StatusOK, s.feed(time.UnixMilli(since)))
}

func (s *Server) feed(since time.Time) UpdateFeed {
	now := time.Now()
	return UpdateFeed{
		Timestamp: now.UnixMilli(),
		Stale:     s.manager.StaleCount(),
		Updates:   toFeedUpdates(s.manager.UpdatesSince(since)),
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, Status{
		Stale:   s.manager.StaleCount(),
		Updates: s.manager.UpdateCount(),
		Tiles:   s.manager.TileCount(),
		Running: s.manager.Running(),
	})
}

func (s *Server) handleMarkers(c *gin.Context) {
	c.JSON(http.StatusOK, s.markers.List())
}

func (s *Server) handleWarps(c *gin.Context) {
	warps, err := livemap.LoadWarps(s.opts.WarpsPath)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, warps)
}

// handleStream pushes the update feed over a websocket every update
// interval until the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.UpdateInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		feed := s.feed(last)
		last = time.UnixMilli(feed.Timestamp)
		if len(feed.Updates) == 0 {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(feed); err != nil {
			s.log.Debugf("websocket write failed: %v", err)
			return
		}
	}
}
