package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SettingsGetter looks up a raw setting by key. An empty value means unset.
type SettingsGetter interface {
	GetSetting(key string) (string, error)
}

// EnvSource reads settings from the process environment.
type EnvSource struct{}

func (EnvSource) GetSetting(key string) (string, error) {
	return strings.TrimSpace(os.Getenv(key)), nil
}

func (EnvSource) LookupSetting(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	return strings.TrimSpace(val), ok
}

// MapSource serves settings from a fixed map, such as a parsed .env file.
type MapSource map[string]string

func (m MapSource) GetSetting(key string) (string, error) {
	return strings.TrimSpace(m[key]), nil
}

func (m MapSource) LookupSetting(key string) (string, bool) {
	val, ok := m[key]
	return strings.TrimSpace(val), ok
}

// Layered returns the first non-empty value across its sources.
type Layered []SettingsGetter

func (l Layered) GetSetting(key string) (string, error) {
	for _, src := range l {
		val, err := src.GetSetting(key)
		if err != nil {
			return "", err
		}
		if val != "" {
			return val, nil
		}
	}
	return "", nil
}

func (l Layered) LookupSetting(key string) (string, bool) {
	for _, src := range l {
		if lookup, ok := src.(Lookup); ok {
			if val, set := lookup.LookupSetting(key); set {
				return val, true
			}
			continue
		}
		if val, _ := src.GetSetting(key); val != "" {
			return val, true
		}
	}
	return "", false
}

// Loader provides typed access to settings with default values
type Loader struct {
	src SettingsGetter
}

func NewLoader(src SettingsGetter) *Loader {
	return &Loader{src: src}
}

// Int retrieves an integer setting, returning defaultVal if not found or invalid
func (l *Loader) Int(key string, defaultVal int) int {
	if val, _ := l.src.GetSetting(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool accepts anything strconv.ParseBool does ("1", "true", "FALSE", ...).
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val, _ := l.src.GetSetting(key); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			return v
		}
	}
	return defaultVal
}

func (l *Loader) String(key, defaultVal string) string {
	if val, _ := l.src.GetSetting(key); val != "" {
		return val
	}
	return defaultVal
}

// Lookup reports whether key is set at all, even to an empty value.
type Lookup interface {
	LookupSetting(key string) (string, bool)
}

// Raw returns the setting and whether it was set. Use it when an explicitly
// empty value must be told apart from a missing one.
func (l *Loader) Raw(key string) (string, bool) {
	if lookup, ok := l.src.(Lookup); ok {
		return lookup.LookupSetting(key)
	}
	val, _ := l.src.GetSetting(key)
	return val, val != ""
}

// Strings splits a comma separated setting, dropping empty items.
func (l *Loader) Strings(key string, defaultVal []string) []string {
	val, _ := l.src.GetSetting(key)
	if val == "" {
		return defaultVal
	}

	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// Duration expects Go duration syntax ("1h30m", "5s"). A bare integer is
// taken as seconds.
func (l *Loader) Duration(key string, defaultVal time.Duration) time.Duration {
	if val, _ := l.src.GetSetting(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// DurationSeconds retrieves a duration setting stored as (possibly fractional) seconds
func (l *Loader) DurationSeconds(key string, defaultSeconds float64) time.Duration {
	seconds := l.Float64(key, defaultSeconds)
	return time.Duration(seconds * float64(time.Second))
}

// Float64 retrieves a float64 setting, returning defaultVal if not found or invalid
func (l *Loader) Float64(key string, defaultVal float64) float64 {
	if val, _ := l.src.GetSetting(key); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			return v
		}
	}
	return defaultVal
}
