package renderapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/render"
	"github.com/lueurxax/wikirender/internal/render/diff"
	"github.com/lueurxax/wikirender/internal/render/infobox"
	"github.com/lueurxax/wikirender/internal/render/markup"
)

const placeholder = "https://placeholder.example/default.png"

func newTestHandler(rps float64) *Handler {
	return newLimitedHandler(RateLimit{RPS: rps})
}

func newLimitedHandler(limit RateLimit) *Handler {
	logger := zerolog.Nop()
	service := render.NewService(markup.DefaultIgnoreRules(), "https://wiki.example/wiki/Main_Page", placeholder, 1000, 2000)

	return NewHandler(service, "en", limit, &logger)
}

func post(h http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	return postFrom(h, "", path, body, headers...)
}

// postFrom sends a request from remoteAddr, or httptest's default peer when
// remoteAddr is empty.
func postFrom(h http.Handler, remoteAddr, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestRenderMarkup(t *testing.T) {
	h := newTestHandler(100)

	rec := post(h, "/render/markup", `{"html":"<p>A <b>sword</b> of <a href=\"/wiki/Iron\">iron</a></p>"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var resp textResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "A **sword** of [iron](<https://wiki.example/wiki/Iron>)", resp.Text)
}

func TestRenderPlain(t *testing.T) {
	rec := post(newTestHandler(100), "/render/plain", `{"html":"<p>A <b>sword</b></p>"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp textResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "A sword", resp.Text)
}

func TestRequestIDPassthrough(t *testing.T) {
	rec := post(newTestHandler(100), "/render/plain", `{"html":"x"}`, headerRequestID, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(headerRequestID))
}

func TestRenderDiffLocale(t *testing.T) {
	html := `<tr><td class="diff-marker"></td><td class="diff-deletedline"><div>a b</div></td>` +
		`<td class="diff-marker"></td><td class="diff-addedline"><div>a <ins> </ins>b</div></td></tr>`

	body, err := json.Marshal(diffRequest{HTML: html})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers []string
		body    string
		want    string
	}{
		{name: "default locale", body: string(body), want: locale.Default().WhitespaceOnly},
		{
			name:    "accept language",
			headers: []string{"Accept-Language", "de-DE,de;q=0.9"},
			body:    string(body),
			want:    locale.For("de").WhitespaceOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newTestHandler(100), "/render/diff", tt.body, tt.headers...)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp diff.Pair
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Added)
			assert.Empty(t, resp.Removed)
		})
	}
}

func TestRenderInfobox(t *testing.T) {
	body := `{"title":"Sword","locale":"en","infoboxes":[{"parser_tag_version":2,"data":[
		{"type":"data","data":{"label":"Damage","value":"<b>10</b>"}},
		{"type":"data","data":{"label":"Kind","value":"<!--LINK'\" 1-->","source":"kind"}}
	]}]}`

	rec := post(newTestHandler(100), "/render/infobox", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp infobox.Embed
	decodeBody(t, rec, &resp)
	assert.Equal(t, "Sword", resp.Title)
	assert.Equal(t, placeholder, resp.Thumbnail)
	assert.True(t, resp.BrokenInfobox)
	assert.Equal(t, locale.Default().BrokenInfobox, resp.Footer)
	assert.Equal(t, []infobox.Field{
		{Name: "Damage", Value: "**10**", Inline: true},
		{Name: "Kind", Value: "`kind`", Inline: true},
	}, resp.Fields)
}

func TestRenderInfoboxInvalid(t *testing.T) {
	rec := post(newTestHandler(100), "/render/infobox", `{"infoboxes":{"not":"a list"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderSplit(t *testing.T) {
	h := newTestHandler(100)

	rec := post(h, "/render/split", `{"text":"first line\nsecond line","max_length":15}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp splitResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, []string{"first line", "second line"}, resp.Chunks)

	rec = post(h, "/render/split", `{"text":"x","max_length":5000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "malformed json", path: "/render/plain", body: `{"html":`, want: http.StatusBadRequest},
		{name: "unknown field", path: "/render/plain", body: `{"htm":"x"}`, want: http.StatusBadRequest},
		{
			name: "body too large",
			path: "/render/markup",
			body: `{"html":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
			want: http.StatusRequestEntityTooLarge,
		},
		{name: "unknown endpoint", path: "/render/nothing", body: `{}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newTestHandler(100), tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/render/plain", nil)
	rec := httptest.NewRecorder()

	newTestHandler(100).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(1)

	first := postFrom(h, "203.0.113.7:40000", "/render/plain", `{"html":"x"}`)
	require.Equal(t, http.StatusOK, first.Code)

	samePeer := postFrom(h, "203.0.113.7:40001", "/render/plain", `{"html":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, samePeer.Code)

	other := postFrom(h, "203.0.113.8:40000", "/render/plain", `{"html":"x"}`)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		second     int
	}{
		{name: "ignored by default", trustProxy: false, second: http.StatusTooManyRequests},
		{name: "honoured behind trusted proxy", trustProxy: true, second: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newLimitedHandler(RateLimit{RPS: 1, TrustProxy: tt.trustProxy})

			first := postFrom(h, "10.0.0.1:5000", "/render/plain", `{"html":"x"}`, "X-Forwarded-For", "198.51.100.1, 10.0.0.1")
			require.Equal(t, http.StatusOK, first.Code)

			second := postFrom(h, "10.0.0.1:5000", "/render/plain", `{"html":"x"}`, "X-Forwarded-For", "198.51.100.2")
			assert.Equal(t, tt.second, second.Code)
		})
	}
}

func TestClientIP(t *testing.T) {
	plain := newTestHandler(1)
	trusting := newLimitedHandler(RateLimit{RPS: 1, TrustProxy: true})

	req := httptest.NewRequest(http.MethodPost, "/render/plain", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Real-IP", "198.51.100.9")

	assert.Equal(t, "2001:db8::1", plain.clientIP(req))
	assert.Equal(t, "198.51.100.9", trusting.clientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", plain.clientIP(req))
}

func TestLimiterSweep(t *testing.T) {
	h := newTestHandler(1)

	for i := 0; i < minLimiterSweep; i++ {
		h.limiters[fmt.Sprintf("idle-%d", i)] = rate.NewLimiter(h.rps, h.burst)
	}

	busy := rate.NewLimiter(h.rps, h.burst)
	require.True(t, busy.Allow())
	h.limiters["busy"] = busy

	rec := postFrom(h, "192.0.2.50:1000", "/render/plain", `{"html":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, h.limiters, 2)
	assert.Contains(t, h.limiters, "busy")
	assert.Contains(t, h.limiters, "192.0.2.50")
	assert.Equal(t, minLimiterSweep, h.nextSweep)
}

func TestEndpointOf(t *testing.T) {
	assert.Equal(t, EndpointDiff, endpointOf("/render/diff"))
	assert.Equal(t, EndpointUnknown, endpointOf("/render/../../etc"))
}
