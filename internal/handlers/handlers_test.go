package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"screener-web/config"
	"screener-web/internal/handlers"
	"screener-web/internal/models"
	"screener-web/internal/services"
	"screener-web/pkg/backend"
)

// fakeBackend is a scripted screener backend.
type fakeBackend struct {
	mu          sync.Mutex
	state       models.State
	processed   int
	total       int
	current     string
	statusFails bool
	stopped     bool
	stopCalls   int
	statusCalls int
	runBody     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/screener/status":
		f.statusCalls++
		if f.statusFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if f.stopped {
			// one stopping answer, then the job is over
			if f.state == models.StateStopping {
				f.state = models.StateCompleted
			} else if f.state != models.StateCompleted {
				f.state = models.StateStopping
			}
		}
		_ = json.NewEncoder(w).Encode(models.JobStatus{
			State: f.state,
			Progress: models.Progress{
				Total:       f.total,
				Processed:   f.processed,
				CurrentItem: &f.current,
			},
			IsRunning: f.state == models.StateScreening,
		})
	case r.URL.Path == "/api/screener/stop":
		f.stopCalls++
		f.stopped = true
	case r.URL.Path == "/api/watchlists":
		_, _ = w.Write([]byte(`["tech","energy"]`))
	case r.URL.Path == "/api/screener/run":
		body := f.runBody
		if body == "" {
			body = `{"status":"success","run_id":9,"results":[{"symbol":"AAPL","data":{"roc_yesterday":41.5,"roc_day_before":40.1}}]}`
		}
		_, _ = w.Write([]byte(body))
	case r.URL.Path == "/api/backtest/strategies":
		http.NotFound(w, r)
	case r.URL.Path == "/api/backtest/run":
		_, _ = w.Write([]byte(`{"status":"success","run_id":4,"summary":{"total_symbols":1,"total_trades":3,"win_rate":0.6667,"avg_return":1.5},"results":[{"symbol":"MSFT","total_trades":3,"win_rate":0.6667,"avg_return":1.5,"max_drawdown":-2.25,"trades":[]}]}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) calls() (status, stop int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.stopCalls
}

func newRouter(t *testing.T, fake *fakeBackend) *gin.Engine {
	t.Helper()
	return newRouterFor(t, fake, 2*time.Second)
}

func newRouterFor(t *testing.T, upstream http.Handler, timeout time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := httptest.NewServer(upstream)
	t.Cleanup(svc.Close)

	tmpl, err := handlers.LoadTemplates()
	require.NoError(t, err)

	client := backend.NewClient(svc.URL, nil, timeout)
	svcs := services.NewServices(client, nil, 0, 20*time.Millisecond)
	cfg := &config.Config{App: config.AppConfig{Environment: "test"}, CORSList: []string{"http://localhost:3000"}}
	return handlers.NewRouter(cfg, svcs, tmpl)
}

func serve(router http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if method == http.MethodPost && body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func runningBackend() *fakeBackend {
	return &fakeBackend{state: models.StateScreening, processed: 50, total: 100, current: "AAPL"}
}

func TestStatusFragmentRunning(t *testing.T) {
	router := newRouter(t, runningBackend())

	w := serve(router, http.MethodGet, "/ui/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "Status: screening - AAPL")
	require.Contains(t, body, "50%")
	require.Contains(t, body, "50 of 100 symbols processed")
	require.Contains(t, body, `data-action="stop"`)
	require.NotContains(t, body, "disabled")
	require.NotEmpty(t, w.Header().Get("Refresh"))
}

func TestStatusFragmentIdle(t *testing.T) {
	router := newRouter(t, &fakeBackend{state: models.StateIdle})

	w := serve(router, http.MethodGet, "/ui/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, strings.TrimSpace(w.Body.String()))
	require.Empty(t, w.Header().Get("Refresh"))
}

func TestStatusFragmentStopping(t *testing.T) {
	router := newRouter(t, &fakeBackend{state: models.StateStopping, processed: 3, total: 9})

	body := serve(router, http.MethodGet, "/ui/status", nil).Body.String()
	require.Contains(t, body, "progress-bar warning")
	require.Contains(t, body, "33%")
	require.NotContains(t, body, `data-action="stop"`)
}

func TestStatusFragmentFetchError(t *testing.T) {
	router := newRouter(t, &fakeBackend{statusFails: true})

	w := serve(router, http.MethodGet, "/ui/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Status unavailable")
	require.NotEmpty(t, w.Header().Get("Refresh"))
}

func TestStatusFragmentKeepsLastStatusOnFetchError(t *testing.T) {
	fake := runningBackend()
	router := newRouter(t, fake)

	require.Contains(t, serve(router, http.MethodGet, "/ui/status", nil).Body.String(), "50 of 100 symbols processed")

	fake.mu.Lock()
	fake.statusFails = true
	fake.mu.Unlock()

	body := serve(router, http.MethodGet, "/ui/status", nil).Body.String()
	require.Contains(t, body, "Status: screening - AAPL")
	require.Contains(t, body, "50 of 100 symbols processed")
	require.Contains(t, body, "Status unavailable")
}

func TestStatusStopFallback(t *testing.T) {
	fake := runningBackend()
	router := newRouter(t, fake)

	w := serve(router, http.MethodPost, "/ui/status/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "stopping")

	status, stop := fake.calls()
	require.Equal(t, 1, stop)
	require.Equal(t, 2, status)
}

func TestStatusStream(t *testing.T) {
	fake := runningBackend()
	srv := httptest.NewServer(newRouter(t, fake))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ui/status/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	readUntil := func(substr string) string {
		for {
			_, msg, err := conn.ReadMessage()
			require.NoError(t, err)
			if strings.Contains(string(msg), substr) {
				return string(msg)
			}
		}
	}

	first := readUntil("AAPL")
	require.Contains(t, first, "50%")
	require.Contains(t, first, `data-action="stop"`)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "stop"}))
	readUntil("Status: completed")

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}

	_, stop := fake.calls()
	require.Equal(t, 1, stop)
}

// slowStopBackend reports a running job until a stop arrives, then a
// completed one. The stop request itself hangs until its caller gives up.
type slowStopBackend struct {
	mu      sync.Mutex
	stopped bool
	aborted chan struct{}
}

func (b *slowStopBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/screener/status":
		b.mu.Lock()
		state, running := models.StateScreening, true
		if b.stopped {
			state, running = models.StateCompleted, false
		}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.JobStatus{
			State:     state,
			Progress:  models.Progress{Total: 10, Processed: 4},
			IsRunning: running,
		})
	case "/api/screener/stop":
		_, _ = io.Copy(io.Discard, r.Body)
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		select {
		case <-r.Context().Done():
			close(b.aborted)
		case <-time.After(10 * time.Second):
		}
	default:
		http.NotFound(w, r)
	}
}

func TestStatusStreamAbortsPendingStop(t *testing.T) {
	upstream := &slowStopBackend{aborted: make(chan struct{})}
	srv := httptest.NewServer(newRouterFor(t, upstream, 30*time.Second))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ui/status/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		if strings.Contains(string(msg), "4 of 10 symbols processed") {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "stop"}))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}

	select {
	case <-upstream.aborted:
	case <-time.After(3 * time.Second):
		t.Fatal("stop request still pending after the view closed")
	}
}

func TestIndexRedirects(t *testing.T) {
	router := newRouter(t, runningBackend())

	w := serve(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/screener", w.Header().Get("Location"))
}

func TestScreenerPage(t *testing.T) {
	router := newRouter(t, runningBackend())

	w := serve(router, http.MethodGet, "/screener", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `<option value="tech">tech</option>`)
	require.Contains(t, body, `value="roc130" selected`)
	require.Contains(t, body, `data-ws="/ui/status/ws"`)
	require.Contains(t, body, `name="roc_threshold" value="40"`)
	// without a socket the stop form is posted in place, not as a navigation
	require.Contains(t, body, `fetch(form.action, { method: "POST"`)
	require.Contains(t, body, `el.innerHTML = html`)
}

func TestScreenerRun(t *testing.T) {
	router := newRouter(t, runningBackend())

	form := url.Values{"watchlist_name": {"tech"}, "screener_type": {"roc130"}, "roc_threshold": {"40"}}
	w := serve(router, http.MethodPost, "/screener/run", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "run 9")
	require.Contains(t, body, "41.50%")
	require.Contains(t, body, "40.10%")
}

func TestScreenerRunRejected(t *testing.T) {
	fake := runningBackend()
	fake.runBody = `{"status":"error","message":"Watchlist tech is empty"}`
	router := newRouter(t, fake)

	form := url.Values{"watchlist_name": {"tech"}, "screener_type": {"roc130"}, "roc_threshold": {"40"}}
	w := serve(router, http.MethodPost, "/screener/run", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "Watchlist tech is empty")
}

func TestScreenerRunInvalidParams(t *testing.T) {
	router := newRouter(t, runningBackend())

	form := url.Values{"watchlist_name": {"tech"}, "screener_type": {"roc130"}, "roc_threshold": {"150"}}
	w := serve(router, http.MethodPost, "/screener/run", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "roc_threshold")
}

func TestBacktestRun(t *testing.T) {
	router := newRouter(t, runningBackend())

	page := serve(router, http.MethodGet, "/backtests", nil)
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), "Mean Reversion")

	form := url.Values{"strategy_type": {"mean_reversion"}, "symbols": {"msft, msft"}, "gap_threshold": {"-0.03"}, "exit_days": {"5"}}
	w := serve(router, http.MethodPost, "/backtests/run", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "MSFT")
	require.Contains(t, body, "66.67%")
	require.Contains(t, body, "-2.25")
}

func TestPerformancePlaceholder(t *testing.T) {
	router := newRouter(t, runningBackend())

	w := serve(router, http.MethodGet, "/performance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Coming soon")
}

func TestAPIErrorEnvelope(t *testing.T) {
	router := newRouter(t, &fakeBackend{statusFails: true})

	w := serve(router, http.MethodGet, "/api/screener/status", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "BACKEND_UNAVAILABLE", resp["error"])

	w = serve(router, http.MethodGet, "/api/screener/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIStrategiesFallback(t *testing.T) {
	router := newRouter(t, runningBackend())

	w := serve(router, http.MethodGet, "/api/backtest/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"mean_reversion"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newRouter(t, runningBackend())

	req := httptest.NewRequest(http.MethodGet, "/api/watchlists", nil)
	req.Header.Set(backend.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc-123", w.Header().Get(backend.RequestIDHeader))
	require.JSONEq(t, `["tech","energy"]`, w.Body.String())
}
