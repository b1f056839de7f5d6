package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/NotCoffee418/telem_cli/pkg/types"
)

func New(options Options) (*Client, error) {
	if options.BaseURL == "" {
		return nil, fmt.Errorf("api base url is empty")
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	tokens := NewTokenStore(options.TokenPath)
	token, err := tokens.Load()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		token:      token,
	}, nil
}

func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Login exchanges credentials for an access token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (*types.LoginResult, error) {
	var response struct {
		AccessToken string `json:"access_token"`
	}
	body := types.Credentials{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", body, false, &response); err != nil {
		return nil, err
	}
	if response.AccessToken == "" {
		return nil, ErrNoToken
	}
	if err := c.tokens.Save(response.AccessToken); err != nil {
		return nil, err
	}
	c.token = response.AccessToken
	return &types.LoginResult{Status: "success", TokenSaved: true}, nil
}

// Logout forgets the stored token. No request is made.
func (c *Client) Logout() error {
	c.token = ""
	return c.tokens.Delete()
}

func (c *Client) Register(ctx context.Context, email, username, password string) (json.RawMessage, error) {
	body := types.Registration{Email: email, Username: username, Password: password}
	return c.raw(ctx, http.MethodPost, "/auth/register", body, false)
}

func (c *Client) RegisterSensor(ctx context.Context, sensor types.SensorInput) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/sensors", sensor, true)
}

func (c *Client) UpdateSensor(ctx context.Context, sensorID int, sensor types.SensorInput) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPut, sensorPath(sensorID), sensor, true)
}

func (c *Client) GetSensor(ctx context.Context, sensorID int) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, sensorPath(sensorID), nil, true)
}

func (c *Client) GetSensors(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/sensors", nil, true)
}

func (c *Client) GetSensorData(ctx context.Context, sensorID int) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, sensorPath(sensorID)+"/data", nil, true)
}

// PushSensorData sends one batch of readings for a sensor.
func (c *Client) PushSensorData(ctx context.Context, sensorID int, batch types.ReadingBatch) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, sensorPath(sensorID)+"/data", batch, true)
}

func sensorPath(sensorID int) string {
	return "/sensors/" + strconv.Itoa(sensorID)
}

func (c *Client) raw(ctx context.Context, method, path string, body any, auth bool) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, method, path, body, auth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, auth bool, out any) error {
	if auth && c.token == "" {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response of %s %s: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, url, err)
	}
	return nil
}
