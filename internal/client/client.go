package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apihttp "github.com/GriffinCanCode/ringsim/internal/api/http"
	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/tracing"
)

const apiPrefix = "/api/producer-consumer"

// InitRequest is the body of an init call. Nil fields take the server defaults.
type InitRequest = apihttp.InitRequest

// APIError is a non-2xx reply from the server
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("server returned %d: %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotInitialized reports whether err is the server refusing to run a dormant simulation
func IsNotInitialized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Config configures a Client
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond caps outgoing calls; zero means unlimited
	RequestsPerSecond float64
	Breaker           resilience.Settings
}

// DefaultConfig returns client settings for a local server
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:8000",
		Timeout:      10 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker: resilience.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
}

// Client drives a ringsim server over its REST API
type Client struct {
	baseURL string
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
}

// New creates a client. Retries on 5xx and 429 happen in the transport;
// the breaker sees one outcome per call.
func New(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	retryClient.Logger = retryLogger{logger.Named("retry").Sugar()}
	// Hand the last reply back without an error so error bodies can be decoded
	retryClient.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "ringsim-client/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	restyClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		tracing.InjectTraceContext(r.Context(), func(key, value string) {
			r.SetHeader(key, value)
		})
		return nil
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	settings := cfg.Breaker
	settings.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError)
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		resty:   restyClient,
		limiter: limiter,
		breaker: resilience.New("ringsim-api", settings),
		logger:  logger,
	}
}

// BaseURL returns the server root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Init (re)initializes the simulation
func (c *Client) Init(ctx context.Context, req InitRequest) (*simulation.Snapshot, error) {
	var snap simulation.Snapshot
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/init", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// InitPreset initializes the simulation from a named server-side scenario
func (c *Client) InitPreset(ctx context.Context, name string) (*simulation.Snapshot, error) {
	return c.command(ctx, "/presets/"+name+"/init")
}

// Start spawns the workers
func (c *Client) Start(ctx context.Context) (*simulation.Snapshot, error) {
	return c.command(ctx, "/start")
}

// Stop halts the workers, freezing in-flight slots
func (c *Client) Stop(ctx context.Context) (*simulation.Snapshot, error) {
	return c.command(ctx, "/stop")
}

// Continue resumes a stopped session
func (c *Client) Continue(ctx context.Context) (*simulation.Snapshot, error) {
	return c.command(ctx, "/continue")
}

// Reset clears the session and returns the server acknowledgement
func (c *Client) Reset(ctx context.Context) (string, error) {
	var ack struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/reset", nil, &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

// Status fetches a snapshot
func (c *Client) Status(ctx context.Context) (*simulation.Snapshot, error) {
	var snap simulation.Snapshot
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/status", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// IsRunning reports whether workers are active
func (c *Client) IsRunning(ctx context.Context) (bool, error) {
	var running bool
	err := c.do(ctx, http.MethodGet, apiPrefix+"/is-running", nil, &running)
	return running, err
}

// History returns the consumed items, oldest first
func (c *Client) History(ctx context.Context) ([]simulation.HistoryView, error) {
	var body struct {
		Items []simulation.HistoryView `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/history", nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// Presets lists the server's scenario presets
func (c *Client) Presets(ctx context.Context) ([]config.Preset, error) {
	var body struct {
		Presets []config.Preset `json:"presets"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/presets", nil, &body); err != nil {
		return nil, err
	}
	return body.Presets, nil
}

// Health returns the server health document
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// ExportHistory downloads the gzip NDJSON history export and decodes it
func (c *Client) ExportHistory(ctx context.Context) ([]simulation.HistoryView, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	return resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]simulation.HistoryView, error) {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(apiPrefix + "/history/export")
		if err != nil {
			return nil, fmt.Errorf("export history: %w", err)
		}
		body := resp.RawBody()
		defer body.Close()

		if resp.IsError() {
			return nil, &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
		}

		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("export history: %w", err)
		}
		defer gz.Close()

		var items []simulation.HistoryView
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var item simulation.HistoryView
			if err := sonic.Unmarshal(line, &item); err != nil {
				return nil, fmt.Errorf("decode history line: %w", err)
			}
			items = append(items, item)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("export history: %w", err)
		}
		return items, nil
	})
}

func (c *Client) command(ctx context.Context, path string) (*simulation.Snapshot, error) {
	var snap simulation.Snapshot
	if err := c.do(ctx, http.MethodPost, apiPrefix+path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// do sends one call through the limiter and the breaker, decoding a 2xx body
// into out and anything else into an APIError
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		apiErr := &APIError{}
		req := c.resty.R().SetContext(ctx).SetError(apiErr)
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}

		start := time.Now()
		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		c.logger.Debug("API call",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)

		if resp.IsError() {
			apiErr.StatusCode = resp.StatusCode()
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(resp.String())
			}
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode())
			}
			return apiErr
		}
		return nil
	})
}

// retryLogger adapts zap to retryablehttp's leveled logger
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
