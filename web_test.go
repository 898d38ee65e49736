package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		port:         8080,
		photos:       t.TempDir(),
		seed:         1,
		correctDelay: 20 * time.Millisecond,
		wrongDelay:   20 * time.Millisecond,
	}
}

func newTestServer(t *testing.T, cfg *Config, records []MemoryRecord) (*httptest.Server, *GameManager) {
	t.Helper()

	errs := make(chan error, 64)
	mux, gm := newRouter(cfg, records, errs)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, gm
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	client := &http.Client{CheckRedirect: noRedirect}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t), demoMemories)

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))

	_, body = get(t, srv.URL+"/version")
	assert.Equal(t, "memorylane v"+releaseVersion+"\n", body)
}

func TestHomeRedirectsToNewSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.prefix = "/memories/"
	srv, _ := newTestServer(t, cfg, demoMemories)

	resp, _ := get(t, srv.URL+"/memories/")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/memories/play", resp.Header.Get("Location"))

	resp, _ = get(t, srv.URL+"/memories/play")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, `^/memories/play/[A-Za-z0-9]{8}$`, resp.Header.Get("Location"))
}

func TestGamePage(t *testing.T) {
	cfg := testConfig(t)
	cfg.prefix = "/m"
	srv, _ := newTestServer(t, cfg, demoMemories)

	resp, body := get(t, srv.URL+"/m/play/abcdefgh")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `src="/m/assets/app.js"`)
	assert.NotContains(t, body, "{{PREFIX}}")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == playerCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
}

func TestAssets(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t), demoMemories)

	resp, body := get(t, srv.URL+"/assets/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "WebSocket")

	resp, _ = get(t, srv.URL+"/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/favicons/favicon.svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
}

func TestPhotos(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.photos, "mar_24_a.jpg", "jpegdata")
	srv, _ := newTestServer(t, cfg, demoMemories)

	resp, body := get(t, srv.URL+"/photos/mar_24_a.jpg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpegdata", body)

	resp, _ = get(t, srv.URL+"/photos/nope.jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMusic(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		srv, _ := newTestServer(t, testConfig(t), demoMemories)

		resp, _ := get(t, srv.URL+"/music")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("loaded once", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.music = writeFile(t, t.TempDir(), "song.mp3", "ID3tune")
		srv, _ := newTestServer(t, cfg, demoMemories)

		resp, body := get(t, srv.URL+"/music")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
		assert.Equal(t, "ID3tune", body)

		require.NoError(t, os.Remove(cfg.music))

		_, body = get(t, srv.URL+"/music")
		assert.Equal(t, "ID3tune", body)
	})
}

func TestQR(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t), demoMemories)

	resp, body := get(t, srv.URL+"/play/abcdefgh/qr")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, len(body) > 8 && body[1:4] == "PNG")
}

func TestProfileHandlers(t *testing.T) {
	cfg := testConfig(t)
	cfg.profile = true
	srv, _ := newTestServer(t, cfg, demoMemories)

	resp, _ := get(t, srv.URL+"/debug/pprof/heap")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", realIP(r))

	r.Header.Set("X-Real-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:1234", realIP(r))
}

func TestNewPageEscapes(t *testing.T) {
	page := newPage("/p", "<b>", "a & b")
	assert.Contains(t, page, "&lt;b&gt;")
	assert.Contains(t, page, `href="/p/"`)
	assert.Contains(t, page, "a &amp; b")
	assert.Contains(t, page, "/p/favicons/favicon.svg")
}

func TestServePageReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.bind = "127.0.0.1"
	cfg.port = ln.Addr().(*net.TCPAddr).Port
	cfg.memories = filepath.Join(t.TempDir(), "missing.json")

	done := make(chan error, 1)
	go func() {
		done <- ServePage(context.Background(), cfg, nil)
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServePage did not return after failing to listen")
	}
}
