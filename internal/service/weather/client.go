// Package weather wraps the OpenWeatherMap REST API: geocoding, current
// conditions, multi-day forecasts and location search.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotConfigured    = errors.New("weather service is not configured")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstream         = errors.New("weather provider error")
)

const defaultBaseURL = "https://api.openweathermap.org"

// Client talks to OpenWeatherMap. Zero value is not usable, use NewClient.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a different host, for tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// Enabled reports whether an API key is present.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Location is a geocoding result.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Current is a snapshot of present conditions.
type Current struct {
	Location    string  `json:"location"`
	Country     string  `json:"country"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	TempC       float64 `json:"temperature_c"`
	FeelsLikeC  float64 `json:"feels_like_c"`
	TempMinC    float64 `json:"temp_min_c"`
	TempMaxC    float64 `json:"temp_max_c"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	ObservedAt  int64   `json:"observed_at"`
}

// ForecastEntry is one 3-hour slot from the forecast API.
type ForecastEntry struct {
	At          time.Time `json:"at"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	TempC       float64   `json:"temperature_c"`
	Humidity    int       `json:"humidity"`
}

// Forecast is a multi-day outlook for one place.
type Forecast struct {
	Location string          `json:"location"`
	Country  string          `json:"country"`
	Entries  []ForecastEntry `json:"entries"`
}

// Geocode resolves a free-form place name to coordinates.
func (c *Client) Geocode(ctx context.Context, location string) (*Location, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("limit", "1")
	q.Set("appid", c.apiKey)

	var results []Location
	if err := c.getJSON(ctx, "/geo/1.0/direct", q, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}
	return &results[0], nil
}

// Search returns up to five geocoding candidates for a query.
func (c *Client) Search(ctx context.Context, query string) ([]Location, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", "5")
	q.Set("appid", c.apiKey)

	var results []Location
	if err := c.getJSON(ctx, "/geo/1.0/direct", q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

type currentResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

// CurrentWeather fetches present conditions for a place name, in metric
// units.
func (c *Client) CurrentWeather(ctx context.Context, location string) (*Current, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	loc, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", loc.Lat))
	q.Set("lon", fmt.Sprintf("%f", loc.Lon))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	var resp currentResponse
	if err := c.getJSON(ctx, "/data/2.5/weather", q, &resp); err != nil {
		return nil, err
	}

	cur := &Current{
		Location:   loc.Name,
		Country:    loc.Country,
		TempC:      resp.Main.Temp,
		FeelsLikeC: resp.Main.FeelsLike,
		TempMinC:   resp.Main.TempMin,
		TempMaxC:   resp.Main.TempMax,
		Humidity:   resp.Main.Humidity,
		WindSpeed:  resp.Wind.Speed,
		ObservedAt: resp.Dt,
	}
	if len(resp.Weather) > 0 {
		cur.Condition = resp.Weather[0].Main
		cur.Description = resp.Weather[0].Description
	}
	return cur, nil
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

// ForecastWeather fetches a forecast in 3-hour slots. days is clamped to
// [1,5] since the free API caps out at 40 slots.
func (c *Client) ForecastWeather(ctx context.Context, location string, days int) (*Forecast, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if days < 1 {
		days = 1
	}
	if days > 5 {
		days = 5
	}

	loc, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", loc.Lat))
	q.Set("lon", fmt.Sprintf("%f", loc.Lon))
	q.Set("units", "metric")
	q.Set("cnt", fmt.Sprintf("%d", days*8))
	q.Set("appid", c.apiKey)

	var resp forecastResponse
	if err := c.getJSON(ctx, "/data/2.5/forecast", q, &resp); err != nil {
		return nil, err
	}

	fc := &Forecast{Location: loc.Name, Country: loc.Country}
	if fc.Location == "" {
		fc.Location = resp.City.Name
	}
	for _, item := range resp.List {
		entry := ForecastEntry{
			At:       time.Unix(item.Dt, 0).UTC(),
			TempC:    item.Main.Temp,
			Humidity: item.Main.Humidity,
		}
		if len(item.Weather) > 0 {
			entry.Condition = item.Weather[0].Main
			entry.Description = item.Weather[0].Description
		}
		fc.Entries = append(fc.Entries, entry)
	}
	return fc, nil
}

// getJSON issues a GET and decodes the body. Transient transport errors are
// retried once.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		lastErr = c.doGetJSON(ctx, path, query, out)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doGetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrLocationNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errTransient marks retryable failures. It wraps ErrUpstream so callers can
// still match the broad category after retries are exhausted.
var errTransient = fmt.Errorf("transient: %w", ErrUpstream)

func isTransient(err error) bool {
	if errors.Is(err, errTransient) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
