package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy" mapstructure:"taxonomy"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// TaxonomyConfig locates the land-use taxonomy workbook.
type TaxonomyConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	PieSheet      string `yaml:"pie_sheet" mapstructure:"pie_sheet"`
	SelectorSheet string `yaml:"selector_sheet" mapstructure:"selector_sheet"`
}

// GeocodeConfig configures the address geocoding client.
type GeocodeConfig struct {
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CachePath    string  `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// OverpassConfig configures the map-feature and street-network provider.
type OverpassConfig struct {
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	ShapefileDir string  `yaml:"shapefile_dir" mapstructure:"shapefile_dir"`
}

// ElevationConfig configures the batched elevation lookup service.
type ElevationConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// QueryConfig holds per-query defaults.
type QueryConfig struct {
	RadiusMeters  float64  `yaml:"radius_meters" mapstructure:"radius_meters"`
	MinRadius     float64  `yaml:"min_radius" mapstructure:"min_radius"`
	MaxRadius     float64  `yaml:"max_radius" mapstructure:"max_radius"`
	LanduseKeys   []string `yaml:"landuse_keys" mapstructure:"landuse_keys"`
	POICategories []string `yaml:"poi_categories" mapstructure:"poi_categories"`
}

// CacheConfig configures the in-memory memoization cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP query server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NAVIGATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("taxonomy.path", "osm_features.xlsx")
	v.SetDefault("taxonomy.pie_sheet", "pie_index")
	v.SetDefault("taxonomy.selector_sheet", "poi_index")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "navigator/1.0")
	v.SetDefault("geocode.rate_per_sec", 1)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 60)
	v.SetDefault("overpass.rate_per_sec", 1)
	v.SetDefault("overpass.max_retries", 3)
	v.SetDefault("elevation.url", "https://api.open-elevation.com/api/v1/lookup")
	v.SetDefault("elevation.batch_size", 100)
	v.SetDefault("elevation.timeout_secs", 30)
	v.SetDefault("query.radius_meters", 500)
	v.SetDefault("query.min_radius", 100)
	v.SetDefault("query.max_radius", 3000)
	v.SetDefault("query.landuse_keys", []string{"landuse", "natural", "leisure", "amenity", "shop", "building"})
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
