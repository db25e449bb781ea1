package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const geoCacheTTL = 24 * time.Hour

type geoResult struct {
	Country string `json:"country_name"`
	City    string `json:"city"`
}

// Geolocator resolves client IPs through an HTTP JSON lookup service whose
// URL contains an {ip} placeholder, e.g. https://ipapi.co/{ip}/json/.
// Results are cached in Redis when a client is given. Every failure yields an
// unknown location.
type Geolocator struct {
	urlTemplate string
	client      *http.Client
	cache       *redis.Client
	logger      *slog.Logger
}

func NewGeolocator(logger *slog.Logger, urlTemplate string, cache *redis.Client) *Geolocator {
	return &Geolocator{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: 3 * time.Second},
		cache:       cache,
		logger:      logger,
	}
}

func (g *Geolocator) Locate(ctx context.Context, ip string) (string, string) {
	addr := net.ParseIP(ip)
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return "", ""
	}

	key := "geo:" + addr.String()
	if cached, ok := g.fromCache(ctx, key); ok {
		return cached.Country, cached.City
	}

	res, err := g.lookup(ctx, addr.String())
	if err != nil {
		g.logger.Warn("geolocation failed", "error", err)
		return "", ""
	}

	if g.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			if err := g.cache.Set(ctx, key, data, geoCacheTTL).Err(); err != nil {
				g.logger.Warn("geolocation cache write failed", "error", err)
			}
		}
	}
	return res.Country, res.City
}

func (g *Geolocator) fromCache(ctx context.Context, key string) (geoResult, bool) {
	if g.cache == nil {
		return geoResult{}, false
	}
	data, err := g.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.Warn("geolocation cache read failed", "error", err)
		}
		return geoResult{}, false
	}
	var res geoResult
	if err := json.Unmarshal(data, &res); err != nil {
		return geoResult{}, false
	}
	return res, true
}

func (g *Geolocator) lookup(ctx context.Context, ip string) (geoResult, error) {
	url := strings.ReplaceAll(g.urlTemplate, "{ip}", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return geoResult{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return geoResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geoResult{}, fmt.Errorf("lookup returned %s", resp.Status)
	}
	var res geoResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return geoResult{}, fmt.Errorf("decoding lookup response: %w", err)
	}
	return res, nil
}

var _ Locator = (*Geolocator)(nil)
