// Package server exposes dashboard sessions over HTTP: session controls,
// view model JSON, rendered chart images and a websocket push channel.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/metrics"
	"github.com/dgnsrekt/gexdash/internal/render"
	"github.com/dgnsrekt/gexdash/internal/session"
	"github.com/dgnsrekt/gexdash/internal/ws"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Fetcher  session.Fetcher
	Options  session.Options
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	// DisableWS drops the /ws route and snapshot publishing.
	DisableWS bool
}

type Server struct {
	fetcher  session.Fetcher
	options  session.Options
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	manager  *session.Manager
	hub      *ws.Hub
	wsOn     bool
	logger   *zap.Logger
}

func New(deps Deps) (*Server, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}

	s := &Server{
		fetcher:  deps.Fetcher,
		options:  deps.Options,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		wsOn:     !deps.DisableWS,
		logger:   deps.Logger,
	}
	s.manager = session.NewManager(s.newSession, deps.Logger, deps.Metrics)

	hub, err := ws.NewHub("sessions", func(id string) bool {
		_, ok := s.manager.Get(id)
		return ok
	}, deps.Logger)
	if err != nil {
		return nil, err
	}
	s.hub = hub
	return s, nil
}

// Run drives the websocket hub until ctx is cancelled, then closes every
// session.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
	s.manager.CloseAll()
}

func (s *Server) Sessions() *session.Manager { return s.manager }

// newSession builds a session drawing into its own PNG canvas and
// publishing every update to its websocket group.
func (s *Server) newSession(id string) *session.Session {
	opts := s.options
	opts.ID = id
	opts.Metrics = s.metrics
	opts.Logger = s.logger

	renderer := render.NewPNGRenderer(render.NewCanvas(), s.logger.With(zap.String("session", id)))
	sess := session.New(s.fetcher, renderer, opts)
	if !s.wsOn {
		return sess
	}
	sess.Subscribe(func(v session.View) {
		if s.hub.Followers(id) == 0 {
			return
		}
		if err := s.hub.Publish(id, snapshot{View: v, Board: renderer.Board()}); err != nil {
			s.logger.Warn("publishing snapshot failed", zap.String("session", id), zap.Error(err))
		}
	})
	return sess
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(s.logger))

	r.Get("/", indexHandler)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.wsOn {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.sessionCtx)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/ticker", s.handleTicker)
			r.Post("/expiry", s.handleExpiry)
			r.Post("/timeframe", s.handleTimeframe)
			r.Post("/refresh", s.handleRefresh)
			r.Put("/overlays/{metric}", s.handleOverlay)
			r.Put("/sort", s.handleSort)
			r.Get("/table", s.handleTable)
			r.Get("/board", s.handleBoard)
			r.Get("/charts/{chart}.png", s.handleChart)
		})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>gexdash</title>
    <style>
        body { font-family: sans-serif; background: #0f172a; color: #e2e8f0; margin: 1rem; }
        img { max-width: 100%; display: block; margin: 0.5rem 0; }
        .err { color: #ef4444; }
    </style>
</head>
<body>
    <form id="f"><input id="ticker" value="SPY"> <button>Load</button></form>
    <div id="summary"></div>
    <div id="error" class="err"></div>
    <img id="price"><img id="gex">
    <script>
        let id;
        const api = (path, method, body) => fetch('/api/sessions' + path, {
            method: method || 'GET',
            headers: {'Content-Type': 'application/json'},
            body: body && JSON.stringify(body),
        });
        const draw = (msg) => {
            const b = msg.board;
            document.getElementById('summary').textContent =
                [b.summary.ticker, b.summary.expiry, b.price, b.summary.total_gex, b.summary.sentiment, b.summary.vp_position].join('  ');
            document.getElementById('error').textContent = b.error || '';
            const t = Date.now();
            document.getElementById('price').src = '/api/sessions/' + id + '/charts/price.png?t=' + t;
            document.getElementById('gex').src = '/api/sessions/' + id + '/charts/gex.png?t=' + t;
        };
        api('/', 'POST').then(r => r.json()).then(s => {
            id = s.id;
            const sock = new WebSocket(s.ws_url);
            sock.onmessage = (e) => {
                const m = JSON.parse(e.data);
                if (m.type === 'message') draw(m.data);
            };
        });
        document.getElementById('f').onsubmit = (e) => {
            e.preventDefault();
            api('/' + id + '/ticker', 'POST', {ticker: document.getElementById('ticker').value});
        };
    </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
