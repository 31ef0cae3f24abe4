package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const geocodeTokyo = `[{"name":"Tokyo","country":"JP","lat":35.68,"lon":139.69}]`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("test-key")
	client.SetBaseURL(srv.URL)
	return srv, client
}

func TestGeocode(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/1.0/direct" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Tokyo" {
			t.Fatalf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("appid"); got != "test-key" {
			t.Fatalf("missing api key, got %q", got)
		}
		w.Write([]byte(geocodeTokyo))
	})

	loc, err := client.Geocode(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if loc.Name != "Tokyo" || loc.Country != "JP" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := client.Geocode(context.Background(), "Atlantis"); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestCurrentWeather(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geocodeTokyo))
		case "/data/2.5/weather":
			if got := r.URL.Query().Get("units"); got != "metric" {
				t.Fatalf("expected metric units, got %q", got)
			}
			w.Write([]byte(`{
				"name":"Tokyo",
				"sys":{"country":"JP"},
				"weather":[{"main":"Clouds","description":"scattered clouds"}],
				"main":{"temp":21.5,"feels_like":22.0,"temp_min":19.0,"temp_max":24.0,"humidity":60},
				"wind":{"speed":3.2},
				"dt":1749636000
			}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	cur, err := client.CurrentWeather(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("current weather: %v", err)
	}
	if cur.Location != "Tokyo" || cur.Condition != "Clouds" {
		t.Fatalf("unexpected result %+v", cur)
	}
	if cur.TempC != 21.5 || cur.Humidity != 60 {
		t.Fatalf("unexpected readings %+v", cur)
	}
}

func TestForecastClampsDays(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geocodeTokyo))
		case "/data/2.5/forecast":
			if got := r.URL.Query().Get("cnt"); got != "40" {
				t.Fatalf("expected cnt=40, got %q", got)
			}
			w.Write([]byte(`{"list":[{"dt":1749636000,"main":{"temp":20,"humidity":55},"weather":[{"main":"Clear","description":"clear sky"}]}],"city":{"name":"Tokyo","country":"JP"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	fc, err := client.ForecastWeather(context.Background(), "Tokyo", 9)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(fc.Entries) != 1 || fc.Entries[0].Condition != "Clear" {
		t.Fatalf("unexpected forecast %+v", fc)
	}
}

func TestRetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(geocodeTokyo))
	})

	loc, err := client.Geocode(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if loc.Name != "Tokyo" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	})

	if _, err := client.Geocode(context.Background(), "Tokyo"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient("")
	if client.Enabled() {
		t.Fatal("client without key should not be enabled")
	}
	if _, err := client.CurrentWeather(context.Background(), "Tokyo"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFormatCurrent(t *testing.T) {
	cur := &Current{
		Location:    "Tokyo",
		Condition:   "Clouds",
		Description: "scattered clouds",
		TempC:       21.5,
		FeelsLikeC:  22.0,
		TempMinC:    19.0,
		TempMaxC:    24.0,
		Humidity:    60,
		WindSpeed:   3.2,
	}

	got := FormatCurrent(cur)
	if !strings.Contains(got, "The weather in Tokyo is currently scattered clouds with a temperature of 21.5°C") {
		t.Fatalf("unexpected phrasing: %s", got)
	}
	if !strings.Contains(got, "Humidity is at 60%") {
		t.Fatalf("missing humidity: %s", got)
	}
	if !strings.Contains(got, "19.0°C to 24.0°C") {
		t.Fatalf("missing range: %s", got)
	}
	if !strings.Contains(got, "☁️") {
		t.Fatalf("missing condition emoji: %s", got)
	}
}

func TestFormatForecastPicksMiddaySlot(t *testing.T) {
	day := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	fc := &Forecast{
		Location: "London",
		Entries: []ForecastEntry{
			{At: day.Add(6 * time.Hour), Condition: "Rain", Description: "light rain", TempC: 12},
			{At: day.Add(12 * time.Hour), Condition: "Clear", Description: "clear sky", TempC: 18},
			{At: day.Add(21 * time.Hour), Condition: "Clouds", Description: "overcast", TempC: 14},
		},
	}

	got := FormatForecast(fc)
	if !strings.Contains(got, "forecast for London") {
		t.Fatalf("missing header: %s", got)
	}
	if !strings.Contains(got, "clear sky, around 18.0°C") {
		t.Fatalf("expected the midday reading, got: %s", got)
	}
	if strings.Contains(got, "light rain") {
		t.Fatalf("morning slot should not represent the day: %s", got)
	}
}

func TestFormatForecastEmpty(t *testing.T) {
	got := FormatForecast(&Forecast{Location: "Oslo"})
	if !strings.Contains(got, "No forecast data is available for Oslo") {
		t.Fatalf("unexpected empty message: %s", got)
	}
}
