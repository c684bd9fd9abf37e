package api

import (
	"context"
	"crosssync/cfg"
	"crosssync/svc/lim"
	"crosssync/svc/persist"
	"crosssync/svc/svc"
	"crosssync/svc/util"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

type Server struct {
	router     *chi.Mux
	content    *svc.Content
	lim        *lim.Limiter
	cfg        *cfg.Cfg
	shim       *persist.Shim
	httpServer *http.Server
}

func NewServer(c *cfg.Cfg, content *svc.Content, l *lim.Limiter, shim *persist.Shim) *Server {
	r := chi.NewRouter()
	mw := NewMw(l, c)
	s := &Server{
		router:  r,
		content: content,
		lim:     l,
		cfg:     c,
		shim:    shim,
		httpServer: &http.Server{
			Addr:           ":" + c.Port,
			Handler:        r,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 256 * 1024,
		},
	}
	r.Use(mw.CORS())
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", s.Health)
		r.Get("/ready", s.Ready)
		r.Handle("/metrics", mw.BasicAuthMetrics(promhttp.Handler()))
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Use(mw.RequestID)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", util.RedactURL(req.URL.String())).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
		}))
		if len(c.TrustedProxies) > 0 {
			r.Use(middleware.RealIP)
		}
		r.Use(mw.ContextTimeout)
		r.Use(mw.SecurityHeaders)
		r.Use(mw.JSONContentType)
		r.Use(mw.Observe)
		hdl := &Hdl{content: content, cfg: c}
		read := mw.RateLimit(lim.EndpointRead)
		write := mw.RateLimit(lim.EndpointWrite)

		r.With(read).Get("/shared/{id}", hdl.GetShare)
		r.Route("/api", func(r chi.Router) {
			r.With(write).Post("/shares", hdl.CreateShare)
			r.Route("/shares/{id}", func(r chi.Router) {
				r.With(read).Get("/", hdl.GetShare)
				r.With(write).Put("/", hdl.UpdateShare)
				r.With(mw.RateLimit(lim.EndpointQR)).Get("/qr", hdl.GetQR)
				r.With(read).Get("/export", hdl.Export)
				r.With(read).Get("/text", hdl.PlainText)
				r.With(read).Get("/social", hdl.Social)
				r.With(write).Post("/handoff", hdl.CreateHandoff)
			})
			r.With(read).Get("/handoff/{token}", hdl.TakeHandoff)
			r.With(read).Post("/editor/stats", hdl.EditorStats)
			r.With(read).Post("/editor/format", hdl.EditorFormat)
		})
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	util.Info().Str("port", s.cfg.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("port", s.cfg.Port).Msg("server failed to start")
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
