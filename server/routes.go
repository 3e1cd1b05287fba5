package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/course"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/telemetry"
	"github.com/pthm-cable/shellrace/turtle"
	"github.com/pthm-cable/shellrace/valuation"
)

const (
	maxBodyBytes   = 1 << 20
	maxRaceEntries = 32
	maxShopCount   = 20
)

// HandlerOptions wires the HTTP handler to its collaborators.
type HandlerOptions struct {
	Config       *config.Config
	Engine       *genetics.Engine
	Orchestrator *Orchestrator // nil disables the live endpoints
	Hub          *Hub          // nil disables /ws
	Metrics      *Metrics
	Gatherer     prometheus.Gatherer // nil disables /metrics
	Logger       *slog.Logger
}

// Handler serves the game API. Every request that needs randomness gets its
// own rng, so handlers share nothing mutable.
type Handler struct {
	cfg      *config.Config
	engine   *genetics.Engine
	codec    *genetics.Codec
	orch     *Orchestrator
	hub      *Hub
	metrics  *Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewHandler builds a handler.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Config == nil || opts.Engine == nil {
		return nil, simerr.Configurationf("handler", "config and engine are required")
	}
	codec, err := genetics.NewCodec(opts.Engine.Schema())
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:      opts.Config,
		engine:   opts.Engine,
		codec:    codec,
		orch:     opts.Orchestrator,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		log:      log,
	}, nil
}

// Router returns the complete route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.hub != nil {
		r.Get("/ws", h.hub.ServeWs)
	}
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	r.Mount("/api", h.apiRouter())
	return r
}

func (h *Handler) apiRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/schema", h.instrument("schema", h.handleSchema))
	r.Get("/shop", h.instrument("shop", h.handleShop))
	r.Post("/breed", h.instrument("breed", h.handleBreed))
	r.Post("/train", h.instrument("train", h.handleTrain))
	r.Post("/races", h.instrument("races", h.handleRace))

	r.Route("/live", func(r chi.Router) {
		r.Get("/", h.instrument("live", h.handleLive))
		r.Get("/speed", h.instrument("speed", h.handleGetSpeed))
		r.Put("/speed", h.instrument("speed", h.handleSetSpeed))
	})
	return r
}

func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		h.metrics.ObserveRequest(route, start)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Schema().Genes())
}

func (h *Handler) handleShop(w http.ResponseWriter, r *http.Request) {
	level, err := queryInt(r, "level", h.cfg.Server.Level)
	if err != nil {
		h.writeError(w, "shop", err)
		return
	}
	if level < 0 || level > h.cfg.Shop.MaxLevel {
		h.writeError(w, "shop", simerr.Validationf("level", "must be between 0 and %d, got %d", h.cfg.Shop.MaxLevel, level))
		return
	}
	count, err := queryInt(r, "count", h.cfg.Shop.StockSize)
	if err != nil {
		h.writeError(w, "shop", err)
		return
	}
	if count < 1 || count > maxShopCount {
		h.writeError(w, "shop", simerr.Validationf("count", "must be between 1 and %d, got %d", maxShopCount, count))
		return
	}
	rng, err := requestRNG(r)
	if err != nil {
		h.writeError(w, "shop", err)
		return
	}

	items := make([]ShopItem, 0, count)
	for range count {
		t, err := turtle.RandomTurtle(level, h.cfg.Shop, h.engine, rng)
		if err != nil {
			h.writeError(w, "shop", err)
			return
		}
		items = append(items, ShopItem{
			Turtle: t.Record(),
			Price:  valuation.ShopPrice(t, h.cfg.Shop),
			Value:  valuation.Cost(t, h.cfg.Valuation),
			Genome: h.codec.Encode(t.Genetics()),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type breedRequest struct {
	Parent1 turtle.Record `json:"parent1"`
	Parent2 turtle.Record `json:"parent2"`
	Seed    *int64        `json:"seed,omitempty"`
}

type turtleResponse struct {
	Turtle turtle.Record `json:"turtle"`
	Genome string        `json:"genome"`
}

func (h *Handler) handleBreed(w http.ResponseWriter, r *http.Request) {
	var req breedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, "breed", err)
		return
	}
	p1, err := turtle.FromRecord(req.Parent1, h.engine.Schema())
	if err != nil {
		h.writeError(w, "breed", err)
		return
	}
	p2, err := turtle.FromRecord(req.Parent2, h.engine.Schema())
	if err != nil {
		h.writeError(w, "breed", err)
		return
	}

	rng := seededRNG(req.Seed)
	child, err := turtle.Breed(p1, p2, h.engine, rng)
	if err != nil {
		h.writeError(w, "breed", err)
		return
	}
	if h.cfg.Genetics.BreedMutation {
		if err := child.MutateGenes(h.engine, rng); err != nil {
			h.writeError(w, "breed", err)
			return
		}
	}
	h.metrics.IncrementBreedings()
	writeJSON(w, http.StatusCreated, turtleResponse{Turtle: child.Record(), Genome: h.codec.Encode(child.Genetics())})
}

type trainRequest struct {
	Turtle turtle.Record `json:"turtle"`
	Stat   string        `json:"stat"`
	Seed   *int64        `json:"seed,omitempty"`
}

func (h *Handler) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, "train", err)
		return
	}
	t, err := turtle.FromRecord(req.Turtle, h.engine.Schema())
	if err != nil {
		h.writeError(w, "train", err)
		return
	}
	stat, err := turtle.ParseStat(req.Stat)
	if err != nil {
		h.writeError(w, "train", err)
		return
	}
	if err := t.Train(stat, seededRNG(req.Seed)); err != nil {
		h.writeError(w, "train", err)
		return
	}
	writeJSON(w, http.StatusOK, turtleResponse{Turtle: t.Record(), Genome: h.codec.Encode(t.Genetics())})
}

type raceRequest struct {
	Turtles  []turtle.Record `json:"turtles"`
	Course   string          `json:"course,omitempty"`
	MaxTicks int             `json:"max_ticks,omitempty"`
	Seed     *int64          `json:"seed,omitempty"`
}

type raceResponse struct {
	Stats   telemetry.RaceStats `json:"stats"`
	Results []ResultView        `json:"results"`
}

func (h *Handler) handleRace(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, "races", err)
		return
	}
	if len(req.Turtles) == 0 || len(req.Turtles) > maxRaceEntries {
		h.writeError(w, "races", simerr.Validationf("turtles", "need between 1 and %d entrants, got %d", maxRaceEntries, len(req.Turtles)))
		return
	}
	maxTicks := h.cfg.Race.MaxTicks
	if req.MaxTicks != 0 {
		if req.MaxTicks < 0 || req.MaxTicks > h.cfg.Race.MaxTicks {
			h.writeError(w, "races", simerr.Validationf("max_ticks", "must be between 1 and %d, got %d", h.cfg.Race.MaxTicks, req.MaxTicks))
			return
		}
		maxTicks = req.MaxTicks
	}

	field := make([]*turtle.Turtle, len(req.Turtles))
	for i, rec := range req.Turtles {
		t, err := turtle.FromRecord(rec, h.engine.Schema())
		if err != nil {
			h.writeError(w, "races", err)
			return
		}
		field[i] = t
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	layout, err := course.Build(req.Course, h.cfg, rng)
	if err != nil {
		h.writeError(w, "races", err)
		return
	}
	sim, err := race.New(field, layout, race.Options{Physics: h.cfg.Physics, Rng: rng, Logger: h.log})
	if err != nil {
		h.writeError(w, "races", err)
		return
	}
	results := sim.Run(maxTicks)
	for _, res := range results {
		res.Turtle.AddRaceResult(res.Placing(), h.cfg.Race.Prize(res.Placing()))
	}
	h.metrics.IncrementSimulatedRaces()

	writeJSON(w, http.StatusOK, raceResponse{
		Stats:   telemetry.NewRaceStats(0, seed, sim),
		Results: resultViews(results, h.codec),
	})
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	if h.orch == nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "unavailable", "live racing is disabled")
		return
	}
	snap, ok := h.orch.Latest()
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "not_found", "no race has started yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type speedBody struct {
	Speed int `json:"speed"`
}

func (h *Handler) handleGetSpeed(w http.ResponseWriter, _ *http.Request) {
	if h.orch == nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "unavailable", "live racing is disabled")
		return
	}
	writeJSON(w, http.StatusOK, speedBody{Speed: h.orch.Speed()})
}

func (h *Handler) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "unavailable", "live racing is disabled")
		return
	}
	var body speedBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, "speed", err)
		return
	}
	if err := h.orch.SetSpeed(body.Speed); err != nil {
		h.writeError(w, "speed", err)
		return
	}
	writeJSON(w, http.StatusOK, speedBody{Speed: h.orch.Speed()})
}

// writeError maps simulation errors to HTTP responses. Validation errors are
// the client's fault; anything else is logged and hidden.
func (h *Handler) writeError(w http.ResponseWriter, route string, err error) {
	if errors.Is(err, simerr.ErrValidation) {
		h.metrics.IncrementValidationError(route)
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.log.Error("request failed", "route", route, "error", err)
	writeErrorJSON(w, http.StatusInternalServerError, "internal_error", "")
}

func writeErrorJSON(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited body into v. Malformed input is a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return simerr.Validationf("body", "%v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, simerr.Validationf(key, "not an integer: %q", raw)
	}
	return n, nil
}

func requestRNG(r *http.Request) (*rand.Rand, error) {
	raw := r.URL.Query().Get("seed")
	if raw == "" {
		return seededRNG(nil), nil
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, simerr.Validationf("seed", "not an integer: %q", raw)
	}
	return seededRNG(&seed), nil
}

func seededRNG(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(*seed))
}
