// Package weather fetches conditions from the OpenWeatherMap One Call API
// and maps them into the engine's snapshot shape.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jonboulle/clockwork"

	"github.com/parkcheck/conditions-engine/internal/config"
	"github.com/parkcheck/conditions-engine/internal/domain"
)

// Client implements engine.WeatherFetcher against the One Call API 3.0.
type Client struct {
	apiKey     string
	lat, lon   float64
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewClient creates an OpenWeatherMap client for the configured location.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		apiKey: cfg.WeatherAPIKey,
		lat:    cfg.WeatherLat,
		lon:    cfg.WeatherLon,
		httpClient: &http.Client{
			Timeout: cfg.WeatherTimeout,
		},
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
}

// Fetch retrieves the current conditions, forecast, and alerts. The previous
// snapshot carries lastRainAt forward across cycles where neither the
// current observation nor the hourly history shows rain.
func (c *Client) Fetch(ctx context.Context, prev *domain.WeatherSnapshot) (*domain.WeatherSnapshot, error) {
	params := url.Values{
		"lat":   {fmt.Sprintf("%.4f", c.lat)},
		"lon":   {fmt.Sprintf("%.4f", c.lon)},
		"appid": {c.apiKey},
		"units": {"imperial"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	var raw oneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return transform(raw, prev, c.clock.Now().UTC()), nil
}

// One Call API response types. Precipitation arrives nested under "rain"
// keyed by accumulation window.

type oneCallResponse struct {
	Current oneCallCurrent  `json:"current"`
	Hourly  []oneCallHourly `json:"hourly"`
	Alerts  []oneCallAlert  `json:"alerts"`
}

type oneCallCurrent struct {
	Temp       float64            `json:"temp"`
	FeelsLike  float64            `json:"feels_like"`
	Humidity   int                `json:"humidity"`
	WindSpeed  float64            `json:"wind_speed"`
	WindGust   float64            `json:"wind_gust"`
	Clouds     int                `json:"clouds"`
	Visibility int                `json:"visibility"`
	Weather    []oneCallWeather   `json:"weather"`
	Rain       map[string]float64 `json:"rain"`
}

type oneCallHourly struct {
	Dt        int64              `json:"dt"`
	Temp      float64            `json:"temp"`
	Pop       float64            `json:"pop"`
	WindSpeed float64            `json:"wind_speed"`
	Clouds    int                `json:"clouds"`
	Weather   []oneCallWeather   `json:"weather"`
	Rain      map[string]float64 `json:"rain"`
}

type oneCallWeather struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type oneCallAlert struct {
	Event       string `json:"event"`
	SenderName  string `json:"sender_name"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Description string `json:"description"`
}
