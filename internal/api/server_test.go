package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyover/pkg/audio"
	"flyover/pkg/model"
	"flyover/pkg/registry"
	"flyover/pkg/tour"
	"flyover/pkg/tracker"
	"flyover/pkg/version"
)

type fakeController struct {
	mu      sync.Mutex
	p       *tour.Progress
	theme   string
	actions []string
}

func (f *fakeController) record(a string, p *tour.Progress) *tour.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	if p != nil {
		f.p = p
	}
	return f.p
}

func (f *fakeController) Snapshot() *tour.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p
}

func (f *fakeController) Load(wps []model.Waypoint, theme string) *tour.Progress {
	f.theme = theme
	return f.record("load", tour.New(wps))
}

func (f *fakeController) Start(ctx context.Context) *tour.Progress {
	return f.record("start", tour.Start(f.Snapshot()))
}

func (f *fakeController) TogglePause() *tour.Progress {
	return f.record("pause", tour.TogglePause(f.Snapshot()))
}

func (f *fakeController) Stop() *tour.Progress { return f.record("stop", tour.Stop(f.Snapshot())) }

func (f *fakeController) Skip() *tour.Progress {
	return f.record("skip", tour.Advance(f.Snapshot()))
}

func (f *fakeController) JumpTo(i int) *tour.Progress {
	return f.record("jump", tour.Seek(f.Snapshot(), i))
}

type fakeMusic struct {
	mode   string
	volume float64
}

func (m *fakeMusic) Play(mode string, volume float64) error {
	if mode != audio.ModeFlyover && mode != audio.ModeShowcase {
		return assert.AnError
	}
	m.mode = mode
	m.volume = volume
	if volume < 0 {
		m.volume = audio.DefaultVolumes[mode]
	}
	return nil
}

func (m *fakeMusic) Stop() <-chan struct{} {
	m.mode = ""
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (m *fakeMusic) Mode() string    { return m.mode }
func (m *fakeMusic) Volume() float64 { return m.volume }

const locations = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[-81.37,28.54]},"properties":{"title":"Jazz Night","venue":"Blue Bamboo"}},
 {"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[-81.38,28.55]},"properties":{"title":"Market","venue":"Lake Eola"}},
 {"type":"Feature","id":"c","geometry":{"type":"Point","coordinates":[-81.39,28.56]},"properties":{"title":"Gala","venue":"Arts Center"}}
]}`

type fakePipeline struct{}

func (fakePipeline) InFlight() int       { return 2 }
func (fakePipeline) Epoch() uint64       { return 7 }
func (fakePipeline) Pregenerating() bool { return true }

func newTestServer(t *testing.T) (*httptest.Server, *fakeController, *fakeMusic) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locations.geojson")
	require.NoError(t, os.WriteFile(path, []byte(locations), 0o644))
	reg, err := registry.New(path)
	require.NoError(t, err)

	ctl := &fakeController{p: tour.New(nil)}
	music := &fakeMusic{}
	tr := tracker.New()
	tr.Track("cartesia", tracker.CacheHit)
	tr.Track("cartesia", tracker.CacheMiss)
	tr.Track("cartesia", tracker.CacheMiss)
	tr.Track("cartesia", tracker.Success)
	stats := NewStatsHandler(tr, fakePipeline{})
	srv := NewServer("", "", Handlers{
		Tour:  NewTourHandler(reg, ctl, tour.CompileOptions{}),
		Audio: NewAudioHandler(music, nil),
		Stats: stats,
		Hub:   NewHub(),
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, ctl, music
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndVersion(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, version.Version, decode[map[string]string](t, resp)["version"])
}

func TestLocations(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/locations")
	require.NoError(t, err)
	defer resp.Body.Close()
	locs := decode[[]model.Location](t, resp)
	require.Len(t, locs, 3)
	assert.Equal(t, "Jazz Night", locs[0].Title)
}

func TestLoadTour(t *testing.T) {
	ts, ctl, _ := newTestServer(t)

	resp := post(t, ts.URL+"/api/tour", `{"ids":["c","a"],"theme":"jazz","start":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[tour.Progress](t, resp)
	assert.Equal(t, tour.StatePreparing, p.State)
	require.Len(t, p.Waypoints, 2)
	assert.Equal(t, "Gala", p.Waypoints[0].Location.Title)
	assert.Equal(t, -45.0, p.Waypoints[0].Camera.Bearing)
	assert.Equal(t, "jazz", ctl.theme)
	assert.Equal(t, []string{"load", "start"}, ctl.actions)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"Unknown", `{"ids":["a","zzz"]}`, http.StatusNotFound},
		{"Empty", `{"ids":[]}`, http.StatusBadRequest},
		{"Malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, ts.URL+"/api/tour", tt.body).StatusCode)
		})
	}
}

func TestControl(t *testing.T) {
	ts, ctl, _ := newTestServer(t)
	post(t, ts.URL+"/api/tour", `{"ids":["a","b","c"]}`)

	steps := []struct {
		body  string
		state tour.State
		index int
	}{
		{`{"action":"start"}`, tour.StatePreparing, 0},
		{`{"action":"skip"}`, tour.StateFlying, 1},
		{`{"action":"pause"}`, tour.StatePaused, 1},
		{`{"action":"resume"}`, tour.StateFlying, 1},
		{`{"action":"jump","index":2}`, tour.StateFlying, 2},
		{`{"action":"stop"}`, tour.StateIdle, 0},
	}
	for _, s := range steps {
		resp := post(t, ts.URL+"/api/tour/control", s.body)
		require.Equal(t, http.StatusOK, resp.StatusCode, s.body)
		p := decode[tour.Progress](t, resp)
		assert.Equal(t, s.state, p.State, s.body)
		assert.Equal(t, s.index, p.Index, s.body)
	}

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/tour/control", `{"action":"jump"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/tour/control", `{"action":"rewind"}`).StatusCode)

	resp, err := http.Get(ts.URL + "/api/tour")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, tour.StateIdle, decode[tour.Progress](t, resp).State)
	assert.Contains(t, ctl.actions, "jump")
}

func TestBackground(t *testing.T) {
	ts, _, music := newTestServer(t)

	resp := post(t, ts.URL+"/api/audio/background", `{"mode":"showcase"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, audio.ModeShowcase, music.mode)
	assert.Equal(t, 0.3, music.volume)

	post(t, ts.URL+"/api/audio/background", `{"mode":"flyover","volume":0.5}`)
	assert.Equal(t, 0.5, music.volume)

	post(t, ts.URL+"/api/audio/background", `{"mode":"off"}`)
	assert.Empty(t, music.mode)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/audio/background", `{"mode":"disco"}`).StatusCode)
}

func TestSpeakWithoutSpeaker(t *testing.T) {
	ts, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts.URL+"/api/speak", `{"text":"hi"}`).StatusCode)
}

func TestStats(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[StatsResponse](t, resp)
	cartesia := body.Providers["cartesia"]
	assert.Equal(t, int64(1), cartesia.CacheHits)
	assert.Equal(t, int64(2), cartesia.CacheMisses)
	assert.Equal(t, int64(33), cartesia.HitPercent)
	require.NotNil(t, body.Pipeline)
	assert.Equal(t, PipelineDTO{InFlight: 2, Epoch: 7, Pregenerating: true}, *body.Pipeline)
}

func TestWebsocketBehindRequestLog(t *testing.T) {
	ts, _, _ := newTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}
