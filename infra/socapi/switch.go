package socapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/chargeplan/auth"
)

// PowerPlaceholder in a request body is replaced by the charge power in W.
const PowerPlaceholder = "{power_w}"

// SwitchConfig describes the requests turning a wallbox on and off.
type SwitchConfig struct {
	OnURL  string `json:"on_url"`
	OffURL string `json:"off_url"`
	// Method is POST (default), PUT or GET.
	Method      string     `json:"method"`
	OnBody      string     `json:"on_body"`
	OffBody     string     `json:"off_body"`
	ContentType string     `json:"content_type"`
	TimeoutMS   int        `json:"timeout_ms"`
	Auth        *auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *SwitchConfig) SetDefaults() {
	if c.Method == "" {
		c.Method = http.MethodPost
	}
	c.Method = strings.ToUpper(c.Method)
	if c.ContentType == "" {
		c.ContentType = "application/json"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 10000
	}
}

// Validate checks mandatory fields.
func (c SwitchConfig) Validate() error {
	if c.OnURL == "" || c.OffURL == "" {
		return fmt.Errorf("socapi: on_url and off_url are required")
	}
	switch c.Method {
	case http.MethodPost, http.MethodPut, http.MethodGet:
	default:
		return fmt.Errorf("socapi: unsupported method %q", c.Method)
	}
	if c.Auth != nil {
		return c.Auth.Validate()
	}
	return nil
}

// Switch turns a wallbox on and off with HTTP requests. Any 2xx answer counts
// as done.
type Switch struct {
	cfg SwitchConfig
	ep  endpoint
}

// NewSwitch creates a switch.
func NewSwitch(cfg SwitchConfig) (*Switch, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Switch{cfg: cfg, ep: newEndpoint(cfg.TimeoutMS, cfg.Auth)}, nil
}

// SetSwitch sends the on or off request.
func (s *Switch) SetSwitch(ctx context.Context, on bool, powerW int) error {
	url, body := s.cfg.OffURL, s.cfg.OffBody
	if on {
		url, body = s.cfg.OnURL, s.cfg.OnBody
	}
	var payload []byte
	if body != "" && s.cfg.Method != http.MethodGet {
		payload = []byte(strings.ReplaceAll(body, PowerPlaceholder, strconv.Itoa(powerW)))
	}
	resp, err := s.ep.do(ctx, s.cfg.Method, url, s.cfg.ContentType, payload)
	if err != nil {
		return fmt.Errorf("socapi: switch %s: %w", onOff(on), err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("socapi: switch %s: %s answered %s", onOff(on), url, resp.Status)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
