package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string

	Store StoreConfig
	Timer TimerConfig
	Audio AudioConfig
	Ads   AdsConfig
	Log   LogConfig
}

type StoreConfig struct {
	Backend string // bolt, sqlite, memory
	Path    string
}

type TimerConfig struct {
	WorkDuration      time.Duration
	BreakDuration     time.Duration
	TickInterval      time.Duration
	CreditOfflineTime bool
	Timezone          string
}

type AudioConfig struct {
	CatalogPath      string
	WatchCatalog     bool
	PanCycle         time.Duration
	FrameInterval    time.Duration
	ProgressInterval time.Duration
	ProbeSources     bool
	ProbeTimeout     time.Duration
}

type AdsConfig struct {
	SlotsPath        string
	Page             string
	Breakpoint       int
	MobileLimit      int
	LoadTimeout      time.Duration
	RootMargin       int
	AdSenseClientID  string
	EnabledProviders []string
	Endpoints        map[string]string
	PluginDir        string
	Plugins          []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads defaults, then the optional config file at path, then the
// environment. Later sources win.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:          v.GetString("port"),
		DBPath:        v.GetString("db_path"),
		JWTSecret:     v.GetString("jwt_secret"),
		TokenTTL:      time.Duration(v.GetInt("token_ttl_hours")) * time.Hour,
		CORSOrigins:   splitList(v.GetString("cors_origins"), defaultCORSOrigins),
		MigrationsDir: v.GetString("migrations_dir"),
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Path:    v.GetString("store.path"),
		},
		Timer: TimerConfig{
			WorkDuration:      v.GetDuration("timer.work_duration"),
			BreakDuration:     v.GetDuration("timer.break_duration"),
			TickInterval:      v.GetDuration("timer.tick_interval"),
			CreditOfflineTime: v.GetBool("timer.credit_offline_time"),
			Timezone:          v.GetString("timer.timezone"),
		},
		Audio: AudioConfig{
			CatalogPath:      v.GetString("audio.catalog_path"),
			WatchCatalog:     v.GetBool("audio.watch_catalog"),
			PanCycle:         v.GetDuration("audio.pan_cycle"),
			FrameInterval:    v.GetDuration("audio.frame_interval"),
			ProgressInterval: v.GetDuration("audio.progress_interval"),
			ProbeSources:     v.GetBool("audio.probe_sources"),
			ProbeTimeout:     v.GetDuration("audio.probe_timeout"),
		},
		Ads: AdsConfig{
			SlotsPath:        v.GetString("ads.slots_path"),
			Page:             v.GetString("ads.page"),
			Breakpoint:       v.GetInt("ads.breakpoint"),
			MobileLimit:      v.GetInt("ads.mobile_limit"),
			LoadTimeout:      v.GetDuration("ads.load_timeout"),
			RootMargin:       v.GetInt("ads.root_margin"),
			AdSenseClientID:  v.GetString("ads.adsense_client_id"),
			EnabledProviders: stringList(v, "ads.enabled_providers"),
			Endpoints:        v.GetStringMapString("ads.endpoints"),
			PluginDir:        v.GetString("ads.plugin_dir"),
			Plugins:          stringList(v, "ads.plugins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engines cannot run with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "bolt", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid store backend %q", c.Store.Backend)
	}
	if c.Timer.WorkDuration <= 0 || c.Timer.BreakDuration <= 0 {
		return fmt.Errorf("timer durations must be positive")
	}
	if c.Audio.PanCycle < 6*time.Second || c.Audio.PanCycle > 12*time.Second {
		return fmt.Errorf("audio pan cycle must be between 6s and 12s, got %s", c.Audio.PanCycle)
	}
	if c.Ads.Breakpoint <= 0 {
		return fmt.Errorf("ads breakpoint must be positive")
	}
	if c.Ads.MobileLimit < 0 {
		return fmt.Errorf("ads mobile limit must not be negative")
	}
	if c.Ads.LoadTimeout <= 0 {
		return fmt.Errorf("ads load timeout must be positive")
	}
	return nil
}

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./data/focusbeat.db")
	v.SetDefault("jwt_secret", "change-this-secret")
	v.SetDefault("token_ttl_hours", 72)
	v.SetDefault("cors_origins", "")
	v.SetDefault("migrations_dir", "./migrations")

	v.SetDefault("store.backend", "bolt")
	v.SetDefault("store.path", "./data/local_storage.db")

	v.SetDefault("timer.work_duration", 25*time.Minute)
	v.SetDefault("timer.break_duration", 5*time.Minute)
	v.SetDefault("timer.tick_interval", time.Second)
	v.SetDefault("timer.credit_offline_time", true)
	v.SetDefault("timer.timezone", "Local")

	v.SetDefault("audio.catalog_path", "")
	v.SetDefault("audio.watch_catalog", true)
	v.SetDefault("audio.pan_cycle", 8*time.Second)
	v.SetDefault("audio.frame_interval", 16*time.Millisecond)
	v.SetDefault("audio.progress_interval", 250*time.Millisecond)
	v.SetDefault("audio.probe_sources", false)
	v.SetDefault("audio.probe_timeout", 3*time.Second)

	v.SetDefault("ads.slots_path", "")
	v.SetDefault("ads.page", "home")
	v.SetDefault("ads.breakpoint", 1024)
	v.SetDefault("ads.mobile_limit", 3)
	v.SetDefault("ads.load_timeout", 5*time.Second)
	v.SetDefault("ads.root_margin", 100)
	v.SetDefault("ads.adsense_client_id", "")
	v.SetDefault("ads.enabled_providers", "")
	v.SetDefault("ads.plugin_dir", "./plugins")
	v.SetDefault("ads.plugins", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func bindEnv(v *viper.Viper) {
	// Keys kept from the original server deployment.
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("db_path", "DB_PATH")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("token_ttl_hours", "TOKEN_TTL_HOURS")
	_ = v.BindEnv("cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("migrations_dir", "MIGRATIONS_DIR")

	v.SetEnvPrefix("FOCUSBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// stringList reads key as a config file array or as a comma-separated
// string, which is how environment variables arrive.
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitList(raw, nil)
	}
	return splitList(strings.Join(v.GetStringSlice(key), ","), nil)
}

func splitList(value string, fallback []string) []string {
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
