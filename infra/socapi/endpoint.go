package socapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/chargeplan/auth"
)

// endpoint sends requests with the configured credentials. A 401 answer is
// retried once with a fresh token.
type endpoint struct {
	client *http.Client
	creds  *auth.ClientCred
}

func newEndpoint(timeoutMS int, conf *auth.Conf) endpoint {
	e := endpoint{client: &http.Client{Timeout: time.Duration(timeoutMS) * time.Millisecond}}
	if conf != nil {
		e.creds = auth.NewClientCred(*conf)
	}
	return e
}

func (e endpoint) do(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	resp, err := e.send(ctx, method, url, contentType, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || e.creds == nil {
		return resp, nil
	}
	_ = resp.Body.Close()
	if _, err := e.creds.ForceRefresh(ctx); err != nil {
		return nil, err
	}
	return e.send(ctx, method, url, contentType, body)
}

func (e endpoint) send(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.creds != nil {
		if err := e.creds.SetAuthHeader(ctx, req); err != nil {
			return nil, err
		}
	}
	return e.client.Do(req)
}

// getJSON fetches url and decodes the JSON answer.
func (e endpoint) getJSON(ctx context.Context, url string) (any, error) {
	resp, err := e.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("socapi: %s answered %s", url, resp.Status)
	}
	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("socapi: decode: %w", err)
	}
	return doc, nil
}
