package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conductor-ai/conductor/internal/config"
)

// serverURL is the --server flag shared by the remote commands.
var serverURL string

// baseURL resolves the server address from the flag or the config.
func baseURL() (string, error) {
	if serverURL != "" {
		return serverURL, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port), nil
}

// postJSON sends a JSON body to the server and decodes the error message on
// non-2xx responses.
func postJSON(path string, body any) error {
	base, err := baseURL()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(base+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("is the server running? (conductor serve): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s", apiErr.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}
