package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CPowerMav/PieSS/internal/alert"
	"github.com/CPowerMav/PieSS/internal/visibility"
)

// ApplyEnv overrides fields from PIESS_* environment variables. Values that
// do not parse are logged and ignored.
func (c *Config) ApplyEnv(logger *slog.Logger) {
	if v := os.Getenv("PIESS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PIESS_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	envFloat(logger, "PIESS_LATITUDE", &c.Location.Latitude)
	envFloat(logger, "PIESS_LONGITUDE", &c.Location.Longitude)
	envFloat(logger, "PIESS_ELEVATION_M", &c.Location.ElevationM)
	envBool(logger, "PIESS_DETECT_LOCATION", &c.Location.Detect)

	if v := os.Getenv("PIESS_TLE_SOURCE_URL"); v != "" {
		c.TLE.SourceURL = v
	}
	if v := os.Getenv("PIESS_TLE_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		c.TLE.ExtraURLs = urls
	}
	if v := os.Getenv("PIESS_TLE_CACHE_DIR"); v != "" {
		c.TLE.CacheDir = v
	}
	envBool(logger, "PIESS_TLE_FETCH", &c.TLE.Fetch)
	envDuration(logger, "PIESS_TLE_REFRESH_INTERVAL", &c.TLE.RefreshInterval)

	if v := os.Getenv("PIESS_VISIBILITY_METHOD"); v != "" {
		switch m := visibility.Method(v); m {
		case visibility.MethodSunElevation, visibility.MethodSunriseSunset:
			c.Visibility.Method = m
		default:
			logger.Warn("invalid PIESS_VISIBILITY_METHOD value, using default", "value", v, "default", c.Visibility.Method)
		}
	}
	envFloat(logger, "PIESS_DARKNESS_THRESHOLD_DEG", &c.Visibility.DarknessThresholdDeg)
	envFloat(logger, "PIESS_MIN_ELEVATION_DEG", &c.Visibility.MinElevationDeg)

	if v := os.Getenv("PIESS_ALERT_MODE"); v != "" {
		switch m := alert.Mode(v); m {
		case alert.ModeStatic, alert.ModeBlink:
			c.Alert.Mode = m
		default:
			logger.Warn("invalid PIESS_ALERT_MODE value, using default", "value", v, "default", c.Alert.Mode)
		}
	}
	envDuration(logger, "PIESS_LEAD_TIME", &c.Loop.LeadTime)
	envDuration(logger, "PIESS_COOLDOWN", &c.Loop.Cooldown)

	if v := os.Getenv("PIESS_HARDWARE_DRIVER"); v != "" {
		c.Hardware.Driver = v
	}
	if v := os.Getenv("PIESS_PIGPIO_ADDR"); v != "" {
		c.Hardware.PigpioAddr = v
	}
	if v, ok := os.LookupEnv("PIESS_HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("PIESS_HTTP_AUTH_TOKEN"); v != "" {
		c.HTTP.Auth.Token = v
	}
	envBool(logger, "PIESS_STATUS_PRINT", &c.Status.Print)
}

func envFloat(logger *slog.Logger, key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

func envDuration(logger *slog.Logger, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", dst.String())
		return
	}
	*dst = d
}
