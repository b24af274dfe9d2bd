package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/leximpact/socio-fiscal-api/internal/platform/errors/i18n"
	"github.com/leximpact/socio-fiscal-api/internal/platform/telemetry/metrics"
	"github.com/leximpact/socio-fiscal-api/internal/platform/timeouts"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage"
	runsqlite "github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage/sqlite"
)

const (
	defaultCountryPackage = "openfisca_france"
	defaultCSGPeriod      = "2021"

	rootMessage = "please go to /docs"
)

// Config defines the inputs for the simulation HTTP/WebSocket boundary.
type Config struct {
	HTTPAddr          string
	CountryPackage    string
	CountryJSONDir    string
	EngineURL         string
	EngineTimeout     time.Duration
	PopulationCSV     string
	CSGPeriod         string
	RunsDBPath        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Dependencies are the collaborators behind the HTTP handler. Runs may be
// nil, in which case population totals are recomputed on every request.
type Dependencies struct {
	CountryPackage string
	CSGPeriod      string
	PopulationCSV  string
	Metadata       *metadata.Cache
	Engine         engine.Engine
	Runs           storage.RunStore
}

// Server hosts the simulation HTTP process.
//
// Calculations are delegated to the external engine; the server only owns
// metadata queries, situation building and result streaming.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	runStore        *runsqlite.Store
}

type handler struct {
	countryPackage string
	csgPeriod      string
	populationCSV  string
	metadata       *metadata.Cache
	engine         engine.Engine
	runs           storage.RunStore
}

// NewHandler creates the simulation routes.
func NewHandler(deps Dependencies) http.Handler {
	h := &handler{
		countryPackage: strings.TrimSpace(deps.CountryPackage),
		csgPeriod:      strings.TrimSpace(deps.CSGPeriod),
		populationCSV:  strings.TrimSpace(deps.PopulationCSV),
		metadata:       deps.Metadata,
		engine:         deps.Engine,
		runs:           deps.Runs,
	}
	if h.countryPackage == "" {
		h.countryPackage = defaultCountryPackage
	}
	if h.csgPeriod == "" {
		h.csgPeriod = defaultCSGPeriod
	}
	if h.metadata == nil {
		h.metadata = metadata.NewCache("")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /parameters", h.listParameters)
	mux.HandleFunc("GET /parameters/{$}", h.listParameters)
	mux.HandleFunc("GET /parameters/{name}", h.getParameter)
	mux.HandleFunc("GET /parameters/{name}/ancestors", h.getParameterAncestors)
	mux.HandleFunc("GET /variables", h.listVariables)
	mux.HandleFunc("GET /variables/{$}", h.listVariables)
	mux.HandleFunc("GET /variables/{name}", h.getVariable)
	mux.HandleFunc("GET /variables/{name}/inputs/{date}", h.getInputVariables)
	mux.HandleFunc("GET /variables/{name}/parameters/{date}", h.getVariableParameters)

	mux.HandleFunc("POST /csg", h.calculateCSG)
	mux.HandleFunc("GET /csg_pop", h.calculateCSGPopulation)
	mux.HandleFunc("POST /reform_csg", h.calculateReformCSG)
	mux.HandleFunc("GET /runs", h.listRuns)

	mux.Handle("/ws", h.wsHandler(endpointWaterfall))
	mux.Handle("/simulations/calculate", h.wsHandler(endpointSimulation))

	return withCORS(metrics.InstrumentHandler(mux))
}

// withCORS allows every origin and method without credentials. Preflights
// echo the requested method and headers.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		if method := r.Header.Get("Access-Control-Request-Method"); r.Method == http.MethodOptions && method != "" {
			header.Set("Access-Control-Allow-Methods", method)
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				header.Set("Access-Control-Allow-Headers", requested)
			}
			header.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("simulation: encode response: %v", err)
	}
}

// writeRawJSON sends an already encoded document as is.
func writeRawJSON(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := i18n.MatchLocale(r.Header.Get("Accept-Language"))
	status, body := apperrors.Render(err, locale)
	if status >= http.StatusInternalServerError {
		log.Printf("simulation: %s %s failed: code=%s err=%v", r.Method, r.URL.Path, body.Error.Code, err)
	}
	writeJSON(w, status, body)
}

// NewServer builds a configured simulation server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.EngineURL) == "" {
		return nil, errors.New("engine url is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	deps := Dependencies{
		CountryPackage: config.CountryPackage,
		CSGPeriod:      config.CSGPeriod,
		PopulationCSV:  config.PopulationCSV,
		Metadata:       metadata.NewCache(config.CountryJSONDir),
		Engine:         engine.NewClient(config.EngineURL, config.EngineTimeout, nil),
	}

	var runStore *runsqlite.Store
	if path := strings.TrimSpace(config.RunsDBPath); path != "" {
		store, err := runsqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		runStore = store
		deps.Runs = store
	} else {
		log.Printf("simulation: run store disabled, population totals are not cached")
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		runStore:        runStore,
	}, nil
}

// Run creates and serves a simulation server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init simulation server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve simulation: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("simulation server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("simulation server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.runStore != nil {
		if err := s.runStore.Close(); err != nil {
			log.Printf("close run store: %v", err)
		}
	}
}
