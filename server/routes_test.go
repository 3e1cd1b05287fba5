package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/turtle"
)

type apiFixture struct {
	cfg     *config.Config
	engine  *genetics.Engine
	router  http.Handler
	orch    *Orchestrator
	metrics *prometheus.Registry
}

func newAPI(t *testing.T, live bool) *apiFixture {
	t.Helper()
	cfg := fastConfig()
	engine := testEngine(t, cfg)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	f := &apiFixture{cfg: cfg, engine: engine, metrics: reg}
	if live {
		o, err := NewOrchestrator(OrchestratorOptions{Config: cfg, Engine: engine, Metrics: metrics, Seed: 5})
		require.NoError(t, err)
		f.orch = o
	}
	h, err := NewHandler(HandlerOptions{
		Config:       cfg,
		Engine:       engine,
		Orchestrator: f.orch,
		Metrics:      metrics,
		Gatherer:     reg,
	})
	require.NoError(t, err)
	f.router = h.Router()
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertInvalid(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "invalid_request", body["error"])
	assert.NotEmpty(t, body["error_description"])
}

func record(t *testing.T, name string, speed float64) turtle.Record {
	t.Helper()
	tt, err := turtle.New(name, turtle.Stats{Speed: speed, MaxEnergy: 100, Recovery: 3, Swim: 5, Climb: 5}, nil, nil)
	require.NoError(t, err)
	return tt.Record()
}

func TestHealthz(t *testing.T) {
	f := newAPI(t, false)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestSchemaEndpoint(t *testing.T) {
	f := newAPI(t, false)
	rec := f.do(t, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	genes := decode[[]map[string]any](t, rec)
	assert.Len(t, genes, f.engine.Schema().Len())
	assert.Equal(t, f.engine.Schema().Names()[0], genes[0]["name"])
	assert.Contains(t, genes[0], "kind")
}

func TestShopEndpoint(t *testing.T) {
	f := newAPI(t, false)

	rec := f.do(t, http.MethodGet, "/api/shop?count=2&level=3&seed=9", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := decode[[]ShopItem](t, rec)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Greater(t, item.Price, f.cfg.Shop.BasePrice)
		assert.NotEmpty(t, item.Genome)
		_, err := turtle.FromRecord(item.Turtle, f.engine.Schema())
		assert.NoError(t, err)
	}

	// Same seed, same stock
	again := decode[[]ShopItem](t, f.do(t, http.MethodGet, "/api/shop?count=2&level=3&seed=9", nil))
	assert.Equal(t, items[0].Genome, again[0].Genome)
	assert.Equal(t, items[0].Price, again[0].Price)

	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?count=0", nil))
	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?level=abc", nil))
	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?level=-1", nil))
	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?count=20&level=20000000", nil))
	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?seed=x", nil))
}

func TestBreedEndpoint(t *testing.T) {
	f := newAPI(t, false)
	mom, dad := record(t, "Speedy", 6), record(t, "Bolt", 4)
	seed := int64(3)

	rec := f.do(t, http.MethodPost, "/api/breed", breedRequest{Parent1: mom, Parent2: dad, Seed: &seed})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	child := decode[turtleResponse](t, rec)
	assert.Equal(t, turtle.ChildName("Speedy", "Bolt"), child.Turtle.Name)
	assert.Equal(t, 1, child.Turtle.Generation)
	assert.ElementsMatch(t, []string{mom.ID, dad.ID}, child.Turtle.ParentIDs)
	assert.GreaterOrEqual(t, child.Turtle.Speed, 4.0)
	assert.LessOrEqual(t, child.Turtle.Speed, 6.0)
	assert.NotEmpty(t, child.Genome)

	assertInvalid(t, f.do(t, http.MethodPost, "/api/breed", breedRequest{Parent1: mom, Parent2: mom}))
	assertInvalid(t, f.do(t, http.MethodPost, "/api/breed", `{"parent1": `))
	assertInvalid(t, f.do(t, http.MethodPost, "/api/breed", `{"mother": {}}`))
}

func TestTrainEndpoint(t *testing.T) {
	f := newAPI(t, false)
	r := record(t, "Tank", 3)

	rec := f.do(t, http.MethodPost, "/api/train", trainRequest{Turtle: r, Stat: "speed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trained := decode[turtleResponse](t, rec)
	assert.Equal(t, 4.0, trained.Turtle.Speed)
	assert.Equal(t, 1, trained.Turtle.Age)
	assert.Equal(t, r.ID, trained.Turtle.ID)

	assertInvalid(t, f.do(t, http.MethodPost, "/api/train", trainRequest{Turtle: r, Stat: "charisma"}))
}

func TestRaceEndpoint(t *testing.T) {
	f := newAPI(t, false)
	seed := int64(42)
	req := raceRequest{
		Turtles: []turtle.Record{record(t, "Fast", 8), record(t, "Slow", 2)},
		Seed:    &seed,
	}

	rec := f.do(t, http.MethodPost, "/api/races", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[raceResponse](t, rec)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
	assert.Equal(t, 2, resp.Stats.Entrants)
	assert.Equal(t, seed, resp.Stats.Seed)
	assert.Equal(t, "linear", resp.Stats.Course)
	for _, r := range resp.Results {
		placing := 0
		if r.Finished {
			placing = r.Rank
		}
		assert.Equal(t, f.cfg.Race.Prize(placing), r.Earnings)
		assert.Equal(t, 1, r.Turtle.TotalRaces)
	}

	// Deterministic for a fixed seed
	again := decode[raceResponse](t, f.do(t, http.MethodPost, "/api/races", req))
	assert.Equal(t, resp.Stats.Ticks, again.Stats.Ticks)
	assert.Equal(t, resp.Results[0].Turtle.ID, again.Results[0].Turtle.ID)

	// Finished records can be raced again
	rerun := raceRequest{Turtles: []turtle.Record{resp.Results[0].Turtle, resp.Results[1].Turtle}, Seed: &seed}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/races", rerun).Code)

	checkpoint := req
	checkpoint.Course = "checkpoint"
	cp := decode[raceResponse](t, f.do(t, http.MethodPost, "/api/races", checkpoint))
	assert.Equal(t, "checkpoint", cp.Stats.Course)

	assertInvalid(t, f.do(t, http.MethodPost, "/api/races", raceRequest{}))
	bad := req
	bad.Course = "spiral"
	assertInvalid(t, f.do(t, http.MethodPost, "/api/races", bad))
	bad = req
	bad.MaxTicks = -5
	assertInvalid(t, f.do(t, http.MethodPost, "/api/races", bad))
	dup := raceRequest{Turtles: []turtle.Record{req.Turtles[0], req.Turtles[0]}}
	assertInvalid(t, f.do(t, http.MethodPost, "/api/races", dup))
}

func TestRaceEndpointUnfinishedEarnsParticipation(t *testing.T) {
	f := newAPI(t, false)
	seed := int64(42)
	req := raceRequest{
		Turtles:  []turtle.Record{record(t, "Fast", 8), record(t, "Slow", 2)},
		MaxTicks: 1,
		Seed:     &seed,
	}

	rec := f.do(t, http.MethodPost, "/api/races", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[raceResponse](t, rec)

	assert.Equal(t, 0, resp.Stats.Finishers)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.False(t, r.Finished)
		assert.Equal(t, f.cfg.Race.Participation, r.Earnings)
		require.Len(t, r.Turtle.RaceHistory, 1)
		assert.Equal(t, 0, r.Turtle.RaceHistory[0].Position)
	}
}

func TestLiveEndpointsDisabled(t *testing.T) {
	f := newAPI(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/live", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/live/speed", nil).Code)
}

func TestLiveSpeed(t *testing.T) {
	f := newAPI(t, true)

	rec := f.do(t, http.MethodGet, "/api/live/speed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[speedBody](t, rec).Speed)

	rec = f.do(t, http.MethodPut, "/api/live/speed", speedBody{Speed: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[speedBody](t, rec).Speed)
	assert.Equal(t, 2, f.orch.Speed())

	assertInvalid(t, f.do(t, http.MethodPut, "/api/live/speed", speedBody{Speed: 3}))
	assert.Equal(t, 2, f.orch.Speed())

	// No race yet
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/live", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t, false)
	assertInvalid(t, f.do(t, http.MethodGet, "/api/shop?count=0", nil))

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `shellrace_validation_errors_total{route="shop"} 1`), body)
	assert.Contains(t, body, "shellrace_http_request_duration_seconds")
}
