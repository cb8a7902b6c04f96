// Package renderapi serves the renderers as JSON endpoints.
package renderapi

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/wikirender/internal/core/errors"
	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/platform/observability"
	"github.com/lueurxax/wikirender/internal/render"
	"github.com/lueurxax/wikirender/internal/render/infobox"
	"github.com/lueurxax/wikirender/internal/render/markup"
)

const (
	maxBodyBytes      = 1 << 20
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	logFieldRequestID = "request_id"

	// minLimiterSweep is the limiter count below which idle limiters are
	// never swept.
	minLimiterSweep = 1024
)

// RateLimit configures per-client request limiting.
type RateLimit struct {
	// RPS is the sustained requests per second allowed for one client.
	RPS float64
	// TrustProxy keys clients on X-Forwarded-For or X-Real-IP. Only enable it
	// behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Handler serves POST /render/{plain,markup,diff,infobox,split}.
type Handler struct {
	service       *render.Service
	defaultLocale string
	logger        *zerolog.Logger
	mux           *http.ServeMux

	// IP-based rate limiting
	rps        rate.Limit
	burst      int
	trustProxy bool
	limiters   map[string]*rate.Limiter
	nextSweep  int
	limitersMu sync.Mutex
}

// NewHandler creates a handler limiting each client to limit.RPS.
func NewHandler(service *render.Service, defaultLocale string, limit RateLimit, logger *zerolog.Logger) *Handler {
	burst := int(limit.RPS)
	if burst < 1 {
		burst = 1
	}

	h := &Handler{
		service:       service,
		defaultLocale: defaultLocale,
		logger:        logger,
		mux:           http.NewServeMux(),
		rps:           rate.Limit(limit.RPS),
		burst:         burst,
		trustProxy:    limit.TrustProxy,
		limiters:      make(map[string]*rate.Limiter),
		nextSweep:     minLimiterSweep,
	}

	h.mux.HandleFunc("POST /render/plain", h.handle(EndpointPlain, h.renderPlain))
	h.mux.HandleFunc("POST /render/markup", h.handle(EndpointMarkup, h.renderMarkup))
	h.mux.HandleFunc("POST /render/diff", h.handle(EndpointDiff, h.renderDiff))
	h.mux.HandleFunc("POST /render/infobox", h.handle(EndpointInfobox, h.renderInfobox))
	h.mux.HandleFunc("POST /render/split", h.handle(EndpointSplit, h.renderSplit))

	return h
}

// ServeHTTP applies headers and rate limiting before routing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	w.Header().Set(headerRequestID, requestID)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if !h.allowRequest(h.clientIP(r)) {
		RequestsTotal.WithLabelValues(endpointOf(r.URL.Path), StatusLimited).Inc()
		h.writeError(w, http.StatusTooManyRequests, errors.ErrRateLimited.Error())

		return
	}

	logger := h.logger.With().Str(logFieldRequestID, requestID).Logger()
	h.mux.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
}

type endpointFunc func(r *http.Request) (interface{}, error)

// handle wraps an endpoint with timing, the body cap and error mapping.
func (h *Handler) handle(endpoint string, fn endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		defer func() {
			LatencyHistogram.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}()

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		resp, err := fn(r)
		if err != nil {
			status, label := statusFor(err)
			RequestsTotal.WithLabelValues(endpoint, label).Inc()
			zerolog.Ctx(r.Context()).Debug().Err(err).Str("endpoint", endpoint).Msg("render request rejected")
			h.writeError(w, status, err.Error())

			return
		}

		RequestsTotal.WithLabelValues(endpoint, StatusOK).Inc()
		h.writeJSON(w, http.StatusOK, resp)
	}
}

func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, StatusTooLarge
	}

	return http.StatusBadRequest, StatusBadRequest
}

type htmlRequest struct {
	HTML         string `json:"html"`
	PageLinkBase string `json:"page_link_base"`
	Limit        int    `json:"limit"`
	Locale       string `json:"locale"`
}

type textResponse struct {
	Text string `json:"text"`
}

func (h *Handler) renderPlain(r *http.Request) (interface{}, error) {
	var req htmlRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	return textResponse{Text: h.service.Plain(req.HTML, req.Limit, h.markers(r, req.Locale))}, nil
}

func (h *Handler) renderMarkup(r *http.Request) (interface{}, error) {
	var req htmlRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	return textResponse{Text: h.service.Markup(req.HTML, req.PageLinkBase, req.Limit)}, nil
}

type diffRequest struct {
	HTML   string `json:"html"`
	Locale string `json:"locale"`
}

func (h *Handler) renderDiff(r *http.Request) (interface{}, error) {
	var req diffRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	return h.service.Diff(req.HTML, h.markers(r, req.Locale)), nil
}

type infoboxRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Locale      string          `json:"locale"`
	Infoboxes   json.RawMessage `json:"infoboxes"`
}

func (h *Handler) renderInfobox(r *http.Request) (interface{}, error) {
	var req infoboxRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var docs []infobox.Document

	if len(req.Infoboxes) > 0 {
		var err error

		docs, err = infobox.DecodeDocuments(req.Infoboxes)
		if err != nil {
			return nil, err
		}
	}

	meta := render.InfoboxMeta{Title: req.Title, Description: req.Description}

	e := h.service.Infobox(docs, meta, h.markers(r, req.Locale))
	if e.BrokenInfobox {
		observability.BrokenInfoboxes.Inc()
		zerolog.Ctx(r.Context()).Info().Str("title", req.Title).Msg("infobox has unresolved links")
	}

	return e, nil
}

type splitRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	Char      string `json:"char"`
	Prepend   string `json:"prepend"`
	Append    string `json:"append"`
}

type splitResponse struct {
	Chunks []string `json:"chunks"`
}

func (h *Handler) renderSplit(r *http.Request) (interface{}, error) {
	var req splitRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	if req.MaxLength == 0 {
		req.MaxLength = h.service.MessageLimit
	}

	if req.MaxLength < 0 || req.MaxLength > markup.DefaultMessageLength {
		return nil, fmt.Errorf("max_length must be in 1..%d: %w", markup.DefaultMessageLength, errors.ErrInvalidInput)
	}

	chunks := markup.SplitMessage(req.Text, markup.SplitOptions{
		MaxLength: req.MaxLength,
		Char:      req.Char,
		Prepend:   req.Prepend,
		Append:    req.Append,
	})

	return splitResponse{Chunks: chunks}, nil
}

// markers picks the request locale, then Accept-Language, then the default.
func (h *Handler) markers(r *http.Request, requested string) locale.Markers {
	switch {
	case requested != "":
		return locale.For(requested)
	case r.Header.Get("Accept-Language") != "":
		return locale.For(r.Header.Get("Accept-Language"))
	default:
		return locale.For(h.defaultLocale)
	}
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set(headerContentType, "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write response")
	}
}

func (h *Handler) allowRequest(ip string) bool {
	h.limitersMu.Lock()

	limiter, ok := h.limiters[ip]
	if !ok {
		if len(h.limiters) >= h.nextSweep {
			h.sweepLimiters(time.Now())
		}

		limiter = rate.NewLimiter(h.rps, h.burst)
		h.limiters[ip] = limiter
	}

	h.limitersMu.Unlock()

	return limiter.Allow()
}

// sweepLimiters drops limiters that have refilled completely, since they
// behave exactly like new ones. Callers hold limitersMu.
func (h *Handler) sweepLimiters(now time.Time) {
	for ip, limiter := range h.limiters {
		if limiter.TokensAt(now) >= float64(h.burst) {
			delete(h.limiters, ip)
		}
	}

	h.nextSweep = max(2*len(h.limiters), minLimiterSweep)
}

// clientIP keys a request on its peer address. Forwarding headers are
// honoured only when the handler trusts its proxy.
func (h *Handler) clientIP(r *http.Request) string {
	if h.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func endpointOf(path string) string {
	switch name := strings.TrimPrefix(path, "/render/"); name {
	case EndpointPlain, EndpointMarkup, EndpointDiff, EndpointInfobox, EndpointSplit:
		return name
	default:
		return EndpointUnknown
	}
}
