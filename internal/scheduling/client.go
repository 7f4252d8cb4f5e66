package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/example/marketbook/internal/domain/availability"
	"github.com/example/marketbook/internal/internaltypes"
	"github.com/example/marketbook/internal/session"
)

// Client reads availability windows from the marketplace scheduling API.
// Each client is bound to one session; use WithSession to rebind.
type Client struct {
	hc      *http.Client
	baseURL string
	sess    session.Session
	log     *zap.Logger
}

type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero leaves the transport default.
	Timeout    time.Duration
	HTTPClient *http.Client
	Session    session.Session
	Logger     *zap.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		hc:      hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		sess:    opts.Session,
		log:     log,
	}
}

// WithSession returns a copy of c that sends s's credentials.
func (c *Client) WithSession(s session.Session) *Client {
	cp := *c
	cp.sess = s
	return &cp
}

type envelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    []availability.TimeSlot `json:"data"`
}

// FetchSlots returns the raw slot sequence for q's window, untouched.
func (c *Client) FetchSlots(ctx context.Context, q availability.Query) ([]availability.TimeSlot, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("availability query: %w", err)
	}
	rawURL := fmt.Sprintf("%s/businesses/%s/availability?%s", c.baseURL, url.PathEscape(q.BusinessID), q.Values().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &availability.FetchError{Err: err}
	}
	req.Header.Set("accept", "application/json")
	c.sess.Attach(req)

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("availability request failed", zap.String("business_id", q.BusinessID), zap.Error(err))
		return nil, &availability.FetchError{Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &availability.FetchError{Status: res.StatusCode, Err: err}
	}
	c.log.Debug("availability response",
		zap.String("business_id", q.BusinessID),
		zap.String("start_date", availability.FormatDate(q.StartDate)),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if res.StatusCode == http.StatusUnauthorized {
		c.sess.Expired()
		return nil, &availability.FetchError{Status: res.StatusCode, Message: env.Message, Err: internaltypes.ErrUnauthorized}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &availability.FetchError{Status: res.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, &availability.FetchError{Status: res.StatusCode, Err: fmt.Errorf("decode availability: %w", decodeErr)}
	}
	if !env.Success {
		return nil, &availability.FetchError{Status: res.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}
