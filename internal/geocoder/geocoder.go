package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Place is a reverse-geocoding result.
type Place struct {
	Name        string // short place name, may be empty
	FullAddress string
}

// Client resolves coordinates to addresses via Nominatim (OpenStreetMap).
// Results are cached by coordinate so repeated stops at the same site do not
// re-hit the provider.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger

	cache   map[string]Place
	cacheMu sync.RWMutex

	// Nominatim usage policy: at most 1 request per second.
	lastRequest time.Time
	throttleMu  sync.Mutex
}

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// NewClient creates a geocoding client. An empty baseURL selects the public
// Nominatim endpoint.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		cache:  make(map[string]Place),
	}
}

// nominatimResponse is the subset of the reverse endpoint we read.
type nominatimResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// ReverseGeocode resolves (lat, lon) to a place name and full address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error) {
	// 4 decimals is roughly 11 m, enough to merge repeat visits.
	cacheKey := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.cacheMu.RLock()
	if place, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return place, nil
	}
	c.cacheMu.RUnlock()

	c.throttle()

	apiURL := fmt.Sprintf("%s/reverse?lat=%.6f&lon=%.6f&format=json", c.baseURL, lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var result nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Place{}, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return Place{}, fmt.Errorf("nominatim error: %s", result.Error)
	}
	if result.DisplayName == "" {
		return Place{}, fmt.Errorf("empty geocode result")
	}

	place := Place{
		Name:        result.Name,
		FullAddress: result.DisplayName,
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = place
	// Crude cap so a long-running process cannot grow without bound.
	if len(c.cache) > 10000 {
		c.cache = map[string]Place{cacheKey: place}
	}
	c.cacheMu.Unlock()

	c.logger.Debug("Geocoded coordinates",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("address", place.FullAddress))

	return place, nil
}

// CacheSize returns the number of cached places.
func (c *Client) CacheSize() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return len(c.cache)
}

func (c *Client) throttle() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	if elapsed := time.Since(c.lastRequest); elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	c.lastRequest = time.Now()
}
