// Package config loads the generator's configuration: compiled-in
// defaults, optionally overridden by a YAML file, and finally by
// explicit CLI flags applied by the caller. Grounded on the teacher's
// "load with fallback defaults" shape, generalized from environment
// variables to a YAML override layer.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/shiimaxx/cdrgen/internal/temporal"
	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables driving one invocation.
type Config struct {
	Subs        int     `yaml:"subs"`
	Start       string  `yaml:"start"`
	Days        int     `yaml:"days"`
	Out         string  `yaml:"out"`
	Seed        int64   `yaml:"seed"`
	Workers     int     `yaml:"workers"`
	RotateBytes int64   `yaml:"rotate_bytes"`
	Tz          string  `yaml:"tz"`
	Cells       int     `yaml:"cells"`
	CellCenterLat float64 `yaml:"cell_center_lat"`
	CellCenterLon float64 `yaml:"cell_center_lon"`
	CellRadiusKm  float64 `yaml:"cell_radius_km"`
	MOShareCall float64 `yaml:"mo_share_call"`
	MOShareSMS  float64 `yaml:"mo_share_sms"`

	SubscriberDB string `yaml:"subscriber_db"`
	GenerateDB   string `yaml:"generate_db"`
	ValidateDB   bool   `yaml:"validate_db"`
	DBSize       int    `yaml:"db_size"`
	DBHistoryDays int   `yaml:"db_history_days"`

	CleanupAfterArchive bool `yaml:"cleanup_after_archive"`

	Prefixes        []string `yaml:"prefixes"`
	ForeignPrefixes []string `yaml:"foreign_prefixes"`
	MCCMNCPool      []string `yaml:"mccmnc_pool"`
	InterconnectShare float64 `yaml:"interconnect_share"`

	IMSILength   int `yaml:"imsi_length"`
	MSISDNLength int `yaml:"msisdn_length"`
	ContactPoolSize int `yaml:"contact_pool_size"`
	ZipfExponent    float64 `yaml:"zipf_exponent"`

	CallRatePerDay float64 `yaml:"call_rate_per_day"`
	SMSRatePerDay  float64 `yaml:"sms_rate_per_day"`
	DataRatePerDay float64 `yaml:"data_rate_per_day"`
	CallDurationP50 float64 `yaml:"call_duration_p50"`
	CallDurationP90 float64 `yaml:"call_duration_p90"`

	APNs       []string  `yaml:"apns"`
	APNWeights []float64 `yaml:"apn_weights"`

	WeekdayDiurnal temporal.DiurnalVector `yaml:"weekday_diurnal"`
	WeekendDiurnal temporal.DiurnalVector `yaml:"weekend_diurnal"`
	Seasonality    [13]float64            `yaml:"seasonality"`
	SpecialDays    map[string]float64     `yaml:"special_days"`
}

// Default returns the compiled-in defaults, matching spec.md §6's CLI
// default table plus the SPEC_FULL.md-supplemented domain values
// adopted from original_source/src/config.rs's Default impl.
func Default() Config {
	return Config{
		Subs:          100000,
		Days:          1,
		Out:           "out",
		Seed:          42,
		Workers:       0,
		RotateBytes:   100_000_000,
		Tz:            "Europe/Amsterdam",
		Cells:         2000,
		CellCenterLat: 52.370216,
		CellCenterLon: 4.895168,
		CellRadiusKm:  50,
		MOShareCall:   0.5,
		MOShareSMS:    0.5,

		DBHistoryDays: 365,

		Prefixes:          []string{"316"},
		ForeignPrefixes:   []string{"1", "44", "49"},
		MCCMNCPool:        []string{"20408"},
		InterconnectShare: 0.15,

		IMSILength:      15,
		MSISDNLength:    11,
		ContactPoolSize: 8,
		ZipfExponent:    1.0,

		CallRatePerDay:  2.8,
		SMSRatePerDay:   4.0,
		DataRatePerDay:  6.0,
		CallDurationP50: 90,
		CallDurationP90: 420,

		APNs:       []string{"internet", "ims", "mms"},
		APNWeights: []float64{0.8, 0.15, 0.05},

		WeekdayDiurnal: defaultWeekdayDiurnal(),
		WeekendDiurnal: defaultWeekendDiurnal(),
		Seasonality:    defaultSeasonality(),
		SpecialDays:    map[string]float64{},
	}
}

func defaultWeekdayDiurnal() temporal.DiurnalVector {
	return temporal.DiurnalVector{
		0.2, 0.1, 0.1, 0.1, 0.2, 0.4, 0.8, 1.4, 1.8, 1.6, 1.5, 1.6,
		1.7, 1.6, 1.5, 1.5, 1.6, 1.8, 1.9, 1.6, 1.2, 0.9, 0.6, 0.3,
	}
}

func defaultWeekendDiurnal() temporal.DiurnalVector {
	return temporal.DiurnalVector{
		0.3, 0.2, 0.1, 0.1, 0.1, 0.2, 0.3, 0.5, 0.8, 1.1, 1.4, 1.6,
		1.7, 1.7, 1.6, 1.6, 1.6, 1.7, 1.8, 1.7, 1.5, 1.2, 0.8, 0.5,
	}
}

func defaultSeasonality() [13]float64 {
	var s [13]float64
	for i := 1; i <= 12; i++ {
		s[i] = 1.0
	}
	s[7], s[8] = 1.15, 1.15 // summer bump
	s[12] = 1.3             // December bump
	return s
}

// Load returns Default() merged with the YAML file at path, if
// non-empty. Absent fields in the YAML keep their default values,
// matching original_source/src/config.rs's per-key merge semantics
// rather than a full struct overwrite.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configuration errors per spec.md §4.8/§7: weights
// not summing to 1 within 1e-6, negative rates, empty prefix lists.
func Validate(c Config) error {
	if c.Subs < 0 {
		return fmt.Errorf("config: subs must be non-negative")
	}
	if c.Days < 0 {
		return fmt.Errorf("config: days must be non-negative")
	}
	if len(c.Prefixes) == 0 {
		return fmt.Errorf("config: prefixes must not be empty")
	}
	if len(c.MCCMNCPool) == 0 {
		return fmt.Errorf("config: mccmnc_pool must not be empty")
	}
	for _, rate := range []float64{c.CallRatePerDay, c.SMSRatePerDay, c.DataRatePerDay} {
		if rate < 0 {
			return fmt.Errorf("config: event rates must be non-negative")
		}
	}
	if c.MOShareCall < 0 || c.MOShareCall > 1 {
		return fmt.Errorf("config: mo_share_call must be within [0,1]")
	}
	if c.MOShareSMS < 0 || c.MOShareSMS > 1 {
		return fmt.Errorf("config: mo_share_sms must be within [0,1]")
	}
	if len(c.APNs) > 0 && len(c.APNWeights) > 0 {
		if len(c.APNWeights) != len(c.APNs) {
			return fmt.Errorf("config: apn_weights length must match apns length")
		}
		var sum float64
		for _, w := range c.APNWeights {
			if w < 0 {
				return fmt.Errorf("config: apn_weights must be non-negative")
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("config: apn_weights must sum to 1 within 1e-6, got %v", sum)
		}
	}
	return nil
}
