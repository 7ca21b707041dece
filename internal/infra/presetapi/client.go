package presetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"device-layout/internal/domain"
	"device-layout/internal/infra"
)

// DefaultBaseURL is where the preset backend listens in a local setup.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetry(cfg infra.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type createRequest struct {
	Name     string                `json:"name"`
	Settings []domain.PlacedDevice `json:"settings"`
}

type catalogEntry struct {
	Type  domain.DeviceType `json:"type"`
	Label string            `json:"label"`
}

func (c *Client) ListPresets(ctx context.Context) ([]domain.Preset, error) {
	const op = "list presets"

	env, err := c.doRequest(ctx, op, http.MethodGet, "/presets", nil)
	if err != nil {
		return nil, err
	}

	var presets []domain.Preset
	if err := decodeData(op, env, &presets); err != nil {
		return nil, err
	}
	if presets == nil {
		presets = []domain.Preset{}
	}

	for i := range presets {
		if presets[i].Settings == nil {
			presets[i].Settings = []domain.PlacedDevice{}
		}
	}

	return presets, nil
}

func (c *Client) CreatePreset(ctx context.Context, name string, devices []domain.PlacedDevice) (*domain.Preset, error) {
	const op = "create preset"

	settings := domain.CloneDevices(devices)
	if settings == nil {
		settings = []domain.PlacedDevice{}
	}

	body, err := json.Marshal(createRequest{Name: name, Settings: settings})
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindValidation, Op: op, Message: "encoding preset", Err: err}
	}

	env, err := c.doRequest(ctx, op, http.MethodPost, "/presets", body)
	if err != nil {
		return nil, err
	}

	var preset domain.Preset
	if err := decodeData(op, env, &preset); err != nil {
		return nil, err
	}
	if preset.Name == "" {
		preset.Name = name
	}
	if preset.Settings == nil {
		preset.Settings = settings
	}

	return &preset, nil
}

func (c *Client) DeletePreset(ctx context.Context, id int64) error {
	_, err := c.doRequest(ctx, "delete preset", http.MethodDelete, fmt.Sprintf("/presets/%d", id), nil)
	return err
}

// ListDeviceTypes fetches the palette catalog. Entries with unknown types are
// skipped and duplicates collapse onto the first occurrence.
func (c *Client) ListDeviceTypes(ctx context.Context) ([]domain.AvailableDevice, error) {
	const op = "list device types"

	env, err := c.doRequest(ctx, op, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	var entries []catalogEntry
	if err := decodeData(op, env, &entries); err != nil {
		return nil, err
	}

	seen := make(map[domain.DeviceType]bool, len(entries))
	catalog := make([]domain.AvailableDevice, 0, len(entries))
	for _, e := range entries {
		if !e.Type.Valid() || seen[e.Type] {
			continue
		}
		seen[e.Type] = true

		label := strings.TrimSpace(e.Label)
		if label == "" {
			label = e.Type.Label()
		}
		catalog = append(catalog, domain.AvailableDevice{Type: e.Type, Label: label})
	}

	return catalog, nil
}

func decodeData(op string, env *envelope, out any) error {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return domain.NewApplicationError(op, "response has no data")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.Error{Kind: domain.KindApplication, Op: op, Message: "malformed response data", Err: err}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body []byte) (*envelope, error) {
	retry := c.retry
	if !infra.IsIdempotent(method) {
		retry = infra.NoRetry()
	}

	var env *envelope

	err := infra.WithRetry(ctx, retry, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return infra.Permanent(domain.NewTransportError(op, fmt.Errorf("creating request: %w", err)))
		}

		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.NewTransportError(op, fmt.Errorf("sending request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.NewTransportError(op, fmt.Errorf("reading response: %w", err))
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &domain.Error{
				Kind:    domain.KindTransport,
				Op:      op,
				Message: statusMessage(resp.StatusCode, respBody),
			}
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return statusErr
			}
			return infra.Permanent(statusErr)
		}

		var decoded envelope
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return infra.Permanent(&domain.Error{Kind: domain.KindApplication, Op: op, Message: "malformed response envelope", Err: err})
		}

		if !decoded.Success {
			msg := decoded.Message
			if msg == "" {
				msg = "backend reported failure"
			}
			return infra.Permanent(domain.NewApplicationError(op, msg))
		}

		env = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return env, nil
}

// statusMessage prefers the backend's own message when the error body is an
// envelope.
func statusMessage(status int, body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return fmt.Sprintf("backend error %d: %s", status, env.Message)
	}
	return fmt.Sprintf("backend error %d", status)
}
