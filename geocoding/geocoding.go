package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model"
	"github.com/muelltonne/muellbot/utils/httpUtils"
)

var log = logger.New("geocoding")

type (
	// Store is an optional persistent tier under the in-memory cache so
	// resolved keys survive restarts. Implemented by model/sql.
	Store interface {
		GetLocation(ctx context.Context, canonical string) (model.LocationKey, error)
		SaveLocation(ctx context.Context, canonical string, key model.LocationKey) error
	}

	Client struct {
		endpoint    string
		cache       *cache
		store       Store // may be nil
		positiveTTL time.Duration
		negativeTTL time.Duration
		now         func() time.Time
	}

	location struct {
		PlaceId     int     `json:"place_id"`
		Lat         float64 `json:"lat,string"`
		Lng         float64 `json:"lon,string"`
		DisplayName string  `json:"display_name"`
		Address     struct {
			Suburb       string `json:"suburb"`
			CityDistrict string `json:"city_district"`
		} `json:"address"`
	}
)

func New(endpoint string, store Store, positiveTTL, negativeTTL time.Duration) *Client {
	return &Client{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		cache:       newCache(),
		store:       store,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// Resolve turns an address into its location key. Results, including
// not-found results, are cached by the canonical address string; the
// upstream is only asked while no live cache entry exists.
func (c *Client) Resolve(ctx context.Context, addr model.Address) (model.LocationKey, error) {
	canonical := addr.Canonical()

	if e, ok := c.cache.get(canonical, c.now()); ok {
		return e.key, e.err
	}

	if c.store != nil {
		key, err := c.store.GetLocation(ctx, canonical)
		if err == nil {
			c.cache.put(canonical, key, c.now().Add(c.positiveTTL))
			return key, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			log.Err(err).Str("address", canonical).Msg("Persistent cache lookup failed")
		}
	}

	key, err := c.lookup(ctx, addr)
	switch {
	case err == nil:
		c.cache.put(canonical, key, c.now().Add(c.positiveTTL))
		if c.store != nil {
			if err := c.store.SaveLocation(ctx, canonical, key); err != nil {
				log.Err(err).Str("address", canonical).Msg("Persisting location key failed")
			}
		}
		return key, nil
	case errors.Is(err, model.ErrAddressNotFound):
		// Shorter TTL: the user may fix a typo, but a broken address
		// must not hit the upstream on every run.
		c.cache.putNegative(canonical, err, c.now().Add(c.negativeTTL))
		return "", err
	default:
		// Ambiguous or unavailable results are not cached at all.
		return "", err
	}
}

func (c *Client) lookup(ctx context.Context, addr model.Address) (model.LocationKey, error) {
	requestUrl, err := url.Parse(c.endpoint + "/search")
	if err != nil {
		return "", fmt.Errorf("invalid geocoder endpoint: %w", err)
	}

	q := requestUrl.Query()
	q.Set("accept-language", "de")
	q.Set("limit", "2")
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("q", addr.Query())
	requestUrl.RawQuery = q.Encode()

	var response []location
	err = httpUtils.GetRequest(
		ctx,
		requestUrl.String(),
		map[string]string{"User-Agent": "Muellbot for Telegram"},
		&response,
	)
	if err != nil {
		log.Err(err).Str("address", addr.Query()).Msg("Geocoder request failed")
		return "", fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}

	if len(response) == 0 {
		return "", model.ErrAddressNotFound
	}

	key := locationKey(response[0])
	if len(response) > 1 && locationKey(response[1]) != key {
		log.Warn().
			Str("address", addr.Query()).
			Str("first", response[0].DisplayName).
			Str("second", response[1].DisplayName).
			Msg("Geocoder returned multiple diverging matches")
		return "", model.ErrAddressAmbiguous
	}

	return key, nil
}

// locationKey prefers the district name over raw coordinates: every address
// in a district shares one collection schedule, and district names are
// stable across house numbers. Coordinates quantized to ~100m are the
// fallback for results without district details.
func locationKey(loc location) model.LocationKey {
	district := loc.Address.Suburb
	if district == "" {
		district = loc.Address.CityDistrict
	}
	if district != "" {
		return model.LocationKey(strings.ToLower(strings.Join(strings.Fields(district), " ")))
	}
	return model.LocationKey(fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lng))
}
