package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(config models.Config) *client {
	return &client{baseURL: strings.TrimSuffix(config.DaemonURL, "/"), http: http.DefaultClient}
}

func (c *client) request(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}

	return resp, nil
}

// do sends a JSON request and decodes the JSON answer into out. Non-2xx
// answers become errors carrying the daemon's message. An envelope that
// reports failure is left for the caller to inspect.
func (c *client) do(method, path string, body, out any) error {
	resp, err := c.request(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env pkg.Envelope
		if err := json.Unmarshal(responseBody, &env); err == nil && env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}

		return fmt.Errorf("%s", strings.TrimSuffix(string(responseBody), "\n"))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}
