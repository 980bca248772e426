// Package config loads the citesync configuration file.
//
// The file is YAML. Missing fields keep the values from Default, and the
// result is checked with struct tags before use:
//
//	data_model: group-page-info
//	numbering: appearance
//	order: visual
//	collation_locale: en
//	overlap_report_limit: 10
//	lookup_cache_size: 256
//	log_level: info
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/session"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// MaxFileSize bounds the configuration file (64 KB).
const MaxFileSize = 64 << 10

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("bcp47", validateLocale)
}

func validateLocale(fl validator.FieldLevel) bool {
	_, err := language.Parse(fl.Field().String())
	return err == nil
}

// Config holds every setting of a sync.
type Config struct {
	DataModel           string `yaml:"data_model" validate:"oneof=group-page-info citation-page-info"`
	UnresolvedFirst     bool   `yaml:"unresolved_first"`
	MapFootnotesToMarks bool   `yaml:"map_footnotes_to_marks"`
	RequireSeparation   bool   `yaml:"require_separation"`
	OverlapReportLimit  int    `yaml:"overlap_report_limit" validate:"gte=0"`
	Numbering           string `yaml:"numbering" validate:"oneof=appearance comparator none"`
	Order               string `yaml:"order" validate:"oneof=visual textual"`
	CollationLocale     string `yaml:"collation_locale" validate:"required,bcp47"`
	LookupCacheSize     int    `yaml:"lookup_cache_size" validate:"gte=0,lte=1000000"`
	LogLevel            string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat           string `yaml:"log_format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataModel:          citation.GroupPageInfo.String(),
		OverlapReportLimit: 10,
		Numbering:          "appearance",
		Order:              "visual",
		CollationLocale:    "en",
		LookupCacheSize:    256,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("config file", path)
		}
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration from r over the defaults and validates it.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if len(data) > MaxFileSize {
		return nil, errors.NewValidation("config", fmt.Sprintf("file exceeds %d bytes", MaxFileSize))
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, &errors.ParseError{Format: "YAML", Message: err.Error(), Err: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field. The first offending field is reported.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		ve := errors.NewValidation(yamlName(fe.StructField()), describe(fe))
		ve.Value = fmt.Sprint(fe.Value())
		return ve
	}
	return errors.Wrap(err, "validate config")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "bcp47":
		return "must be a BCP 47 language tag"
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}

var yamlNames = map[string]string{
	"DataModel":          "data_model",
	"OverlapReportLimit": "overlap_report_limit",
	"Numbering":          "numbering",
	"Order":              "order",
	"CollationLocale":    "collation_locale",
	"LookupCacheSize":    "lookup_cache_size",
	"LogLevel":           "log_level",
	"LogFormat":          "log_format",
}

func yamlName(field string) string {
	if n, ok := yamlNames[field]; ok {
		return n
	}
	return field
}

// Logging returns the configured log level and format.
func (c *Config) Logging() (logging.Level, logging.Format) {
	return logging.ParseLevel(c.LogLevel), logging.ParseFormat(c.LogFormat)
}

// SessionOptions converts the configuration to session options. Databases
// and the renderer are left for the caller.
func (c *Config) SessionOptions() (session.Options, error) {
	if err := c.Validate(); err != nil {
		return session.Options{}, err
	}
	model, err := citation.ParseDataModel(c.DataModel)
	if err != nil {
		return session.Options{}, err
	}
	cmp, err := bibdb.CollatingComparator(c.CollationLocale)
	if err != nil {
		return session.Options{}, err
	}

	opts := session.DefaultOptions()
	opts.DataModel = model
	opts.UnresolvedFirst = c.UnresolvedFirst
	opts.MapFootnotesToMarks = c.MapFootnotesToMarks
	opts.RequireSeparation = c.RequireSeparation
	opts.OverlapReportLimit = c.OverlapReportLimit
	opts.Comparator = cmp
	switch c.Numbering {
	case "comparator":
		opts.Numbering = session.NumberByComparator
	case "none":
		opts.Numbering = session.NumberNone
	default:
		opts.Numbering = session.NumberByAppearance
	}
	if c.Order == "textual" {
		opts.Order = session.OrderTextual
	} else {
		opts.Order = session.OrderVisual
	}
	return opts, nil
}
