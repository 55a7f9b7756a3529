// Package geo detects the observer location from the public IP address.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNoLocation is returned when no provider produced coordinates.
var ErrNoLocation = errors.New("no geolocation provider answered")

const maxBodyBytes = 1 << 20

// Location is an observer position.
type Location struct {
	Latitude   float64 `yaml:"latitude" json:"latitude"`
	Longitude  float64 `yaml:"longitude" json:"longitude"`
	ElevationM float64 `yaml:"elevation_m" json:"elevation_m"`
}

// DefaultLocation is used when detection is off or fails.
var DefaultLocation = Location{Latitude: 43.577090, Longitude: -79.727520, ElevationM: 128}

func (l Location) String() string {
	return fmt.Sprintf("%.5f,%.5f %.0fm", l.Latitude, l.Longitude, l.ElevationM)
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", l.Longitude)
	}
	return nil
}

// Provider is one IP geolocation service.
type Provider struct {
	Name  string
	URL   string
	Parse func(body []byte) (Location, error)
}

// DefaultProviders returns ipapi.co, ipinfo.io and ip-api.com, in that
// order.
func DefaultProviders() []Provider {
	return []Provider{
		IPAPICo("https://ipapi.co/json/"),
		IPInfo("https://ipinfo.io/json"),
		IPAPICom("http://ip-api.com/json/"),
	}
}

// IPAPICo parses {"latitude": .., "longitude": ..}.
func IPAPICo(url string) Provider {
	return Provider{Name: "ipapi.co", URL: url, Parse: func(body []byte) (Location, error) {
		var r struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Error     bool     `json:"error"`
			Reason    string   `json:"reason"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return Location{}, err
		}
		if r.Error {
			return Location{}, fmt.Errorf("provider error: %s", r.Reason)
		}
		if r.Latitude == nil || r.Longitude == nil {
			return Location{}, errors.New("missing latitude or longitude")
		}
		return Location{Latitude: *r.Latitude, Longitude: *r.Longitude}, nil
	}}
}

// IPInfo parses {"loc": "lat,lon"}.
func IPInfo(url string) Provider {
	return Provider{Name: "ipinfo.io", URL: url, Parse: func(body []byte) (Location, error) {
		var r struct {
			Loc string `json:"loc"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return Location{}, err
		}
		lat, lon, ok := strings.Cut(r.Loc, ",")
		if !ok {
			return Location{}, fmt.Errorf("bad loc %q", r.Loc)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return Location{}, fmt.Errorf("bad latitude: %w", err)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil {
			return Location{}, fmt.Errorf("bad longitude: %w", err)
		}
		return Location{Latitude: la, Longitude: lo}, nil
	}}
}

// IPAPICom parses {"status": "success", "lat": .., "lon": ..}.
func IPAPICom(url string) Provider {
	return Provider{Name: "ip-api.com", URL: url, Parse: func(body []byte) (Location, error) {
		var r struct {
			Status  string   `json:"status"`
			Message string   `json:"message"`
			Lat     *float64 `json:"lat"`
			Lon     *float64 `json:"lon"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return Location{}, err
		}
		if r.Status != "" && r.Status != "success" {
			return Location{}, fmt.Errorf("provider status %s: %s", r.Status, r.Message)
		}
		if r.Lat == nil || r.Lon == nil {
			return Location{}, errors.New("missing lat or lon")
		}
		return Location{Latitude: *r.Lat, Longitude: *r.Lon}, nil
	}}
}

// Locator queries providers in order until one answers.
type Locator struct {
	client    *http.Client
	providers []Provider
	logger    *slog.Logger
}

// NewLocator creates a Locator. No providers means DefaultProviders.
func NewLocator(timeout time.Duration, logger *slog.Logger, providers ...Provider) *Locator {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	return &Locator{
		client:    &http.Client{Timeout: timeout},
		providers: providers,
		logger:    logger,
	}
}

// Locate returns the first location with both coordinates.
func (l *Locator) Locate(ctx context.Context) (Location, error) {
	var errs []error
	for _, p := range l.providers {
		loc, err := l.query(ctx, p)
		if err == nil {
			err = loc.Validate()
		}
		if err != nil {
			l.logger.Warn("geolocation provider failed", "provider", p.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		l.logger.Info("location detected", "provider", p.Name, "latitude", loc.Latitude, "longitude", loc.Longitude)
		return loc, nil
	}
	return Location{}, fmt.Errorf("%w: %w", ErrNoLocation, errors.Join(errs...))
}

// LocateOrDefault returns the detected location, or def if detection
// fails. A detected location takes def's elevation, since none of the
// providers report one.
func (l *Locator) LocateOrDefault(ctx context.Context, def Location) Location {
	loc, err := l.Locate(ctx)
	if err != nil {
		l.logger.Warn("location detection failed, using default coordinates", "default", def.String(), "error", err)
		return def
	}
	loc.ElevationM = def.ElevationM
	return loc
}

func (l *Locator) query(ctx context.Context, p Provider) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("User-Agent", "PieSS/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Location{}, fmt.Errorf("read body: %w", err)
	}
	return p.Parse(body)
}
