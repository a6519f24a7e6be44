// Package gateway implements the outbound HTTP client that delivers parsed
// plugin replies to the chat-platform gateway, with bounded retry and a
// diagnostic status check on exhaustion.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askr-bot/askr/internal/logger"
	"github.com/rs/zerolog"
)

// Client posts actions to the gateway's base URL.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	statusClient *http.Client
	maxRetries   int
}

// New builds a Client against baseURL.
func New(baseURL string, timeout, statusCheckTimeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		statusClient: &http.Client{Timeout: statusCheckTimeout},
		maxRetries:   maxRetries,
	}
}

// Send posts body to <baseURL>/<action>. It retries up to maxRetries times
// on a transport error (including a timeout) or a non-200, non-4xx HTTP
// status; a 4xx response is never retried, and a 200 response whose body
// status is not "ok"/"async" is logged and not retried. On final exhaustion it
// issues a diagnostic GET to <baseURL>/get_status purely for logging —
// the send itself is still considered failed either way.
func (c *Client) Send(action string, body map[string]any) {
	log := logger.Gateway().With().Str("action", action).Logger()

	payload, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal outbound payload")
		return
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, action)

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("gateway request failed")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			resp.Body.Close()
			log.Warn().Int("status", resp.StatusCode).Msg("gateway client error, not retrying")
			return
		}

		if resp.StatusCode == http.StatusOK {
			var decoded struct {
				Status string `json:"status"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)
			resp.Body.Close()
			if decodeErr != nil {
				log.Error().Err(decodeErr).Msg("invalid JSON response from gateway")
				break
			}
			switch strings.ToLower(decoded.Status) {
			case "ok", "async":
				return
			default:
				log.Error().Str("status", decoded.Status).Msg("gateway returned non-ok status")
				return
			}
		}

		resp.Body.Close()
		log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Int("max_retries", c.maxRetries).
			Msg("unexpected gateway HTTP status")
	}

	c.diagnoseFailure(action, log)
}

// diagnoseFailure issues a best-effort GET against the gateway's status
// endpoint purely to enrich the failure log line — it has no effect on the
// outcome already reported to the caller.
func (c *Client) diagnoseFailure(action string, log zerolog.Logger) {
	resp, err := c.statusClient.Get(c.baseURL + "/get_status")
	if err != nil {
		log.Error().Err(err).Msg("failed to send action; could not reach gateway status endpoint")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("failed to send action; gateway status check returned non-200")
		return
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Error().Err(err).Msg("failed to send action; gateway status response was not valid JSON")
		return
	}
	log.Error().Interface("gateway_status", status).Msg("failed to send action after exhausting retries")
}
