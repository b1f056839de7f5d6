package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return api, server
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, baseURL, token string) (*Client, string) {
	t.Helper()
	tokenPath := filepath.Join(t.TempDir(), "token")
	if token != "" {
		require.NoError(t, os.WriteFile(tokenPath, []byte(token+"\n"), 0o600))
	}
	client, err := New(Options{BaseURL: baseURL + "/api/", TokenPath: tokenPath, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client, tokenPath
}

func TestLoginSavesToken(t *testing.T) {
	api, server := newFakeAPI(t, jsonResponse(http.StatusOK, `{"access_token":"abc123"}`))
	client, tokenPath := newTestClient(t, server.URL, "")
	assert.False(t, client.Authenticated())

	result, err := client.Login(context.Background(), "ada", "secret")
	require.NoError(t, err)
	assert.Equal(t, &types.LoginResult{Status: "success", TokenSaved: true}, result)
	assert.True(t, client.Authenticated())

	req := api.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/auth/login", req.Path)
	assert.Empty(t, req.Auth)
	assert.JSONEq(t, `{"username":"ada","password":"secret"}`, req.Body)

	saved, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(saved))

	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoginWithoutTokenInResponse(t *testing.T) {
	_, server := newFakeAPI(t, jsonResponse(http.StatusOK, `{"message":"ok"}`))
	client, tokenPath := newTestClient(t, server.URL, "")

	_, err := client.Login(context.Background(), "ada", "secret")
	require.ErrorIs(t, err, ErrNoToken)
	_, statErr := os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoginRejected(t *testing.T) {
	_, server := newFakeAPI(t, jsonResponse(http.StatusUnauthorized, `{"error":"bad credentials"}`))
	client, _ := newTestClient(t, server.URL, "")

	_, err := client.Login(context.Background(), "ada", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestAuthenticatedCallsRequireToken(t *testing.T) {
	api, server := newFakeAPI(t, jsonResponse(http.StatusOK, `[]`))
	client, _ := newTestClient(t, server.URL, "")

	_, err := client.GetSensors(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, api.requests, "no request without a token")
}

func TestPushSensorData(t *testing.T) {
	api, server := newFakeAPI(t, jsonResponse(http.StatusCreated, `{"inserted":2}`))
	client, _ := newTestClient(t, server.URL, "tok")

	batch := types.ReadingBatch{Readings: []types.Reading{
		{Unit: "°C", Value: 21.5},
		{Unit: "°C", Value: 22},
	}}
	resp, err := client.PushSensorData(context.Background(), 42, batch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inserted":2}`, string(resp))

	req := api.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/sensors/42/data", req.Path)
	assert.Equal(t, "Bearer tok", req.Auth)
	assert.JSONEq(t, `{"readings":[{"unit":"°C","value":21.5},{"unit":"°C","value":22}]}`, req.Body)
}

func TestSensorEndpoints(t *testing.T) {
	api, server := newFakeAPI(t, jsonResponse(http.StatusOK, `{"id":3}`))
	client, _ := newTestClient(t, server.URL, "tok")
	ctx := context.Background()

	sensorType := "ultrasonic"
	lat, lon := 52.1, 4.3
	active := true
	_, err := client.RegisterSensor(ctx, types.SensorInput{Type: &sensorType, Latitude: &lat, Longitude: &lon, IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, recordedRequest{
		Method: http.MethodPost,
		Path:   "/api/sensors",
		Auth:   "Bearer tok",
		Body:   `{"type":"ultrasonic","latitude":52.1,"longitude":4.3,"is_active":true}`,
	}, api.last())

	inactive := false
	_, err = client.UpdateSensor(ctx, 3, types.SensorInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, api.last().Method)
	assert.Equal(t, "/api/sensors/3", api.last().Path)
	assert.JSONEq(t, `{"is_active":false}`, api.last().Body)

	_, err = client.GetSensor(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "/api/sensors/3", api.last().Path)

	_, err = client.GetSensors(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/api/sensors", api.last().Path)

	resp, err := client.GetSensorData(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, api.last().Method)
	assert.Equal(t, "/api/sensors/3/data", api.last().Path)
	assert.Empty(t, api.last().Body)
	assert.JSONEq(t, `{"id":3}`, string(resp))
}

func TestRegisterIsUnauthenticated(t *testing.T) {
	api, server := newFakeAPI(t, jsonResponse(http.StatusCreated, `{"id":1,"username":"ada"}`))
	client, _ := newTestClient(t, server.URL, "")

	resp, err := client.Register(context.Background(), "ada@example.com", "ada", "pw")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Equal(t, "ada", decoded["username"])
	assert.Equal(t, "/api/auth/register", api.last().Path)
	assert.JSONEq(t, `{"email":"ada@example.com","username":"ada","password":"pw"}`, api.last().Body)
}

func TestServerErrorIsAPIError(t *testing.T) {
	_, server := newFakeAPI(t, jsonResponse(http.StatusInternalServerError, ``))
	client, _ := newTestClient(t, server.URL, "tok")

	_, err := client.PushSensorData(context.Background(), 1, types.ReadingBatch{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "500 Internal Server Error")
}

func TestEmptySuccessBodyIsNull(t *testing.T) {
	_, server := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newTestClient(t, server.URL, "tok")

	resp, err := client.UpdateSensor(context.Background(), 1, types.SensorInput{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(resp))
}

func TestLogoutRemovesToken(t *testing.T) {
	client, tokenPath := newTestClient(t, "http://127.0.0.1:1", "tok")
	require.True(t, client.Authenticated())

	require.NoError(t, client.Logout())
	assert.False(t, client.Authenticated())
	_, err := os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(err))

	// Logging out twice is fine
	assert.NoError(t, client.Logout())
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{TokenPath: filepath.Join(t.TempDir(), "token")})
	assert.Error(t, err)
}
