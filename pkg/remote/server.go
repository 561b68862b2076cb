// Package remote is the camera's debug surface: it presses buttons, fires
// mode triggers, starts and stops controllers and streams the display over
// HTTP.
package remote

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wachiwi/fishcam/pkg/journal"
	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// Screen is the display as the stream sees it.
type Screen interface {
	Snapshot() *image.RGBA
	Generation() uint64
}

// Config holds the listener and credentials. Without a user every route is
// open.
type Config struct {
	Listen        string
	User          string
	Password      string
	SessionSecret string
	// FrameInterval paces the MJPEG stream.
	FrameInterval time.Duration
}

// Server serves the HTTP routes.
type Server struct {
	cfg    Config
	client *Client
	screen Screen
	media  *journal.Journal
	log    *slog.Logger
	router *gin.Engine
}

// NewServer builds the routes. media may be nil.
func NewServer(cfg Config, client *Client, screen Screen, media *journal.Journal) *Server {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = uuid.NewString()
	}
	s := &Server{
		cfg:    cfg,
		client: client,
		screen: screen,
		media:  media,
		log:    logger.For(msg.Remote),
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(sessions.Sessions("fishcam", cookie.NewStore([]byte(s.cfg.SessionSecret))))

	auth := &authHandler{User: s.cfg.User, Password: s.cfg.Password}
	router.POST("/login", auth.Login)
	router.POST("/logout", auth.Logout)

	api := router.Group("/api", auth.Required)
	h := &handlers{client: s.client, screen: s.screen, media: s.media, interval: s.cfg.FrameInterval, log: s.log}
	api.POST("/input/:control", h.Input)
	api.POST("/trigger/:trigger", h.Trigger)
	api.POST("/modules/:module/:command", h.Command)
	api.GET("/stream", h.Stream)
	api.GET("/live", h.Live)
	api.GET("/snapshot.jpg", h.Snapshot)
	api.GET("/media/recent", h.Recent)
	return router
}

// Run listens until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Remote surface listening", "addr", s.cfg.Listen, "auth", s.cfg.User != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
