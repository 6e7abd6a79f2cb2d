// Package gateway submits compound requests to the network scheduler.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"skysurvey/internal/config"
	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

// SimulatedResponse is the response text recorded in simulation mode.
const SimulatedResponse = "Simulated"

const maxResponseBytes = 1 << 20

// TransportError wraps failures to reach the scheduler or read its reply.
// The scheduler never saw (or never answered) the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	url      string
	username string
	password string
	proposal string
	simulate bool

	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(gw config.GatewayConfig, prop config.ProposalConfig, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout, err := config.ParseDurationField("gateway.timeout", gw.Timeout)
	if err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(gw.URL); err != nil && !gw.Simulate {
		return nil, fmt.Errorf("gateway.url: %w", err)
	}

	limit := rate.Inf
	if gw.RatePerSec > 0 {
		limit = rate.Limit(gw.RatePerSec)
	}
	return &Client{
		url:      gw.URL,
		username: prop.UserID,
		password: prop.Password,
		proposal: prop.ProposalID,
		simulate: gw.Simulate,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With(logx.String("comp", "gateway")),
	}, nil
}

// Simulated reports whether submissions bypass the network.
func (c *Client) Simulated() bool { return c.simulate }

// Submit posts g and returns the raw reply body, whatever the HTTP status.
// In simulation mode nothing is sent and SimulatedResponse is returned.
func (c *Client) Submit(ctx context.Context, g survey.ObservationGroup) (string, error) {
	payload, err := survey.Payload(g)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", g.GroupID, err)
	}
	if c.simulate {
		c.log.Info("simulation mode: request not sent", logx.String("group_id", g.GroupID), logx.Int("bytes", len(payload)))
		return SimulatedResponse, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Op: "wait", Err: err}
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("proposal", c.proposal)
	form.Set("request_data", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportError{Op: "read", Err: err}
	}
	c.log.Debug("request submitted",
		logx.String("group_id", g.GroupID),
		logx.Int("http_status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)
	return string(body), nil
}
