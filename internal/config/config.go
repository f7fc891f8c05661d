// Package config loads application configuration from file and
// environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Recognized invoice submit modes
const (
	SubmitModeDraft = "Draft"
	SubmitModeAuto  = "Auto Submit"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProcessingConfig controls pipeline behavior
type ProcessingConfig struct {
	Company            string `mapstructure:"company"`
	AutoCreateSupplier bool   `mapstructure:"auto_create_supplier"`
	AutoCreateItem     bool   `mapstructure:"auto_create_item"`
	AutoCreateInvoice  bool   `mapstructure:"auto_create_invoice"`
	SupplierGroup      string `mapstructure:"supplier_group"`
	ItemGroup          string `mapstructure:"item_group"`
	ServiceItemGroup   string `mapstructure:"service_item_group"`
	ExpenseAccount     string `mapstructure:"expense_account"`
	// Draft or Auto Submit
	InvoiceSubmitMode string `mapstructure:"invoice_submit_mode"`
}

// MatchingConfig controls purchase order and invoice matching
type MatchingConfig struct {
	EnablePOMatching bool `mapstructure:"enable_po_matching"`
	// Days to look back and ahead of the document date for candidate POs
	PODateRangeDays int `mapstructure:"po_date_range_days"`
	// Percent tolerance used for value comparisons
	POTolerancePercent int `mapstructure:"po_tolerance_percent"`
	// Days to search around the issue date for existing invoices
	InvoiceDateRangeDays int `mapstructure:"invoice_date_range_days"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A missing
// file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("processing.auto_create_supplier", true)
	v.SetDefault("processing.auto_create_item", true)
	v.SetDefault("processing.auto_create_invoice", false)
	v.SetDefault("processing.supplier_group", "All Supplier Groups")
	v.SetDefault("processing.item_group", "Products")
	v.SetDefault("processing.service_item_group", "Services")
	v.SetDefault("processing.invoice_submit_mode", SubmitModeDraft)

	v.SetDefault("matching.enable_po_matching", true)
	v.SetDefault("matching.po_date_range_days", 30)
	v.SetDefault("matching.po_tolerance_percent", 5)
	v.SetDefault("matching.invoice_date_range_days", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Processing.InvoiceSubmitMode {
	case SubmitModeDraft, SubmitModeAuto:
	default:
		return fmt.Errorf("processing.invoice_submit_mode must be Draft or Auto Submit, got %q", c.Processing.InvoiceSubmitMode)
	}
	if c.Matching.PODateRangeDays <= 0 {
		return fmt.Errorf("matching.po_date_range_days must be positive")
	}
	if c.Matching.POTolerancePercent < 0 || c.Matching.POTolerancePercent > 100 {
		return fmt.Errorf("matching.po_tolerance_percent must be between 0 and 100")
	}
	return nil
}
