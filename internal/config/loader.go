package config

import (
	"github.com/spf13/viper"

	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/match"
)

// Config is the process-wide configuration: loaded once at startup and
// read-only thereafter.
type Config struct {
	DB             db.Config
	Matching       match.Config
	RuleFile       string
	MigrationsPath string
}

// Load reads config.yaml from configPath, with environment overrides under
// the BIMCALC prefix (BIMCALC_DATABASE_HOST and so on). Missing file means
// defaults plus env.
func Load(configPath string) (Config, error) {
	cfg := Config{
		DB:             db.DefaultConfig(),
		Matching:       match.DefaultConfig(),
		RuleFile:       "./config/classification_rules.yaml",
		MigrationsPath: "./migrations",
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("BIMCALC")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	// Config file is optional; defaults and env cover the rest.
	_ = v.ReadInConfig()

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("matching.min_fuzzy_score") {
		cfg.Matching.MinFuzzyScore = v.GetInt("matching.min_fuzzy_score")
	}
	if v.IsSet("matching.auto_accept_threshold") {
		cfg.Matching.AutoAcceptThreshold = v.GetInt("matching.auto_accept_threshold")
	}
	if v.IsSet("matching.linear_tolerance_mm") {
		cfg.Matching.LinearToleranceMM = v.GetFloat64("matching.linear_tolerance_mm")
	}
	if v.IsSet("matching.diameter_tolerance_mm") {
		cfg.Matching.DiameterToleranceMM = v.GetFloat64("matching.diameter_tolerance_mm")
	}
	if v.IsSet("matching.angle_tolerance_deg") {
		cfg.Matching.AngleToleranceDeg = v.GetFloat64("matching.angle_tolerance_deg")
	}
	if v.IsSet("matching.max_candidates") {
		cfg.Matching.MaxCandidates = v.GetInt("matching.max_candidates")
	}
	if v.IsSet("matching.escape_hatch_cap") {
		cfg.Matching.EscapeHatchCap = v.GetInt("matching.escape_hatch_cap")
	}
	if v.IsSet("matching.default_currency") {
		cfg.Matching.DefaultCurrency = v.GetString("matching.default_currency")
	}
	if v.IsSet("matching.stale_price_days") {
		cfg.Matching.StalePriceDays = v.GetInt("matching.stale_price_days")
	}
	if v.IsSet("classifier.rule_file") {
		cfg.RuleFile = v.GetString("classifier.rule_file")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}

	return cfg, nil
}
