// API client for a running conversion server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
)

// APIService provides raw and typed access to the conversion server's HTTP API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API client. The base URL defaults to the server's default listen address.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5001"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// CreateJobResponse is returned by POST /create-job.
type CreateJobResponse struct {
	Success bool   `json:"success"`
	File    string `json:"file"`
	Path    string `json:"path"`
	Status  string `json:"status"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Queued  int    `json:"queued"`
	Running int    `json:"running"`
	Workers int    `json:"workers"`
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// CreateJob submits a conversion request for sourceURL.
func (a *APIService) CreateJob(ctx context.Context, sourceURL string) (*CreateJobResponse, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	body, err := json.Marshal(map[string]string{"url": sourceURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := a.Post(ctx, "/create-job", body)
	if err != nil {
		return nil, err
	}

	var out CreateJobResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the job projection for filename. Unknown filenames report the pending phase.
func (a *APIService) Status(ctx context.Context, filename string) (*models.JobView, error) {
	resp, err := a.Get(ctx, "/status/"+url.PathEscape(filename))
	if err != nil {
		return nil, err
	}

	var out models.JobView
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Library returns the library index, newest first.
func (a *APIService) Library(ctx context.Context) ([]models.LibraryEntryView, error) {
	resp, err := a.Get(ctx, "/library")
	if err != nil {
		return nil, err
	}

	var out []models.LibraryEntryView
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports server liveness and worker pool depth.
func (a *APIService) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := a.Get(ctx, "/healthz")
	if err != nil {
		return nil, err
	}

	var out HealthResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the audio for filename into w from the unified stream endpoint.
func (a *APIService) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/stream/"+url.PathEscape(filename), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, statusError(resp.StatusCode, body)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return n, nil
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// decode maps non-2xx responses to errors and unmarshals the body into v otherwise.
func decode(resp *APIResponse, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, resp.Body)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	msg := http.StatusText(code)
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	switch code {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, code, msg)
	}
}
