// Package config loads the JSON job configuration of a jet/MET run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/jetmet/internal/jetmet"
	"github.com/banshee-data/jetmet/internal/jetmet/jer"
	"github.com/banshee-data/jetmet/internal/jetmet/restable"
)

// DefaultConfigPath is the path to the canonical job defaults file.
const DefaultConfigPath = "config/jetmet.defaults.json"

// JobConfig is the root job configuration. Every field is optional; the
// Get* methods supply defaults for omitted fields.
type JobConfig struct {
	IsData           *bool    `json:"is_data,omitempty"`
	Corrections      []string `json:"corrections,omitempty"`
	Systematic       *string  `json:"systematic,omitempty"`
	NSigma           *float64 `json:"n_sigma,omitempty"`
	Era              *string  `json:"era,omitempty"`
	GaussianSmearing *bool    `json:"gaussian_smearing,omitempty"`
	Seed             *uint64  `json:"seed,omitempty"`
	Workers          *int     `json:"workers,omitempty"`
	MatchRadius      *float64 `json:"match_radius,omitempty"`

	Labels  *Labels  `json:"labels,omitempty"`
	Files   *Files   `json:"files,omitempty"`
	Outputs *Outputs `json:"outputs,omitempty"`

	ResolutionMeasurement *bool `json:"resolution_measurement,omitempty"`
}

// Labels name the event collections.
type Labels struct {
	Jets    string `json:"jets,omitempty"`
	GenJets string `json:"gen_jets,omitempty"`
	MET     string `json:"met,omitempty"`
}

// Files are the parameter file paths. Relative paths resolve against the
// directory of the config file.
type Files struct {
	JECData        []string `json:"jec_data,omitempty"`
	JECMC          []string `json:"jec_mc,omitempty"`
	JESUncertainty string   `json:"jes_uncertainty,omitempty"`
	Resolution     string   `json:"resolution,omitempty"`
	RhoBins        int      `json:"rho_bins,omitempty"`
}

// Outputs are the optional output locations. Empty means not written.
type Outputs struct {
	Events string `json:"events,omitempty"`
	Ntuple string `json:"ntuple,omitempty"`
	Plots  string `json:"plots,omitempty"`
	Report string `json:"report,omitempty"`
}

func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyJobConfig returns a JobConfig with all fields unset.
func EmptyJobConfig() *JobConfig {
	return &JobConfig{}
}

// DefaultJobConfig returns the built-in defaults with every scalar set.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		IsData:                ptrBool(false),
		Corrections:           []string{"jec_mc", "smear_mc", "type1_met"},
		Systematic:            ptrString("none"),
		NSigma:                ptrFloat64(1),
		Era:                   ptrString("run2"),
		GaussianSmearing:      ptrBool(true),
		Seed:                  ptrUint64(1),
		Workers:               ptrInt(1),
		MatchRadius:           ptrFloat64(jetmet.DefaultMatchRadius),
		ResolutionMeasurement: ptrBool(false),
	}
}

// LoadJobConfig loads a JobConfig from a JSON file. The file must have a
// .json extension and be under 1MB. Relative file paths are made relative
// to the config file's directory.
func LoadJobConfig(path string) (*JobConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyJobConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(cleanPath))
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *JobConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadJobConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func (c *JobConfig) resolvePaths(dir string) {
	if c.Files == nil {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Files.JECData {
		c.Files.JECData[i] = abs(c.Files.JECData[i])
	}
	for i := range c.Files.JECMC {
		c.Files.JECMC[i] = abs(c.Files.JECMC[i])
	}
	c.Files.JESUncertainty = abs(c.Files.JESUncertainty)
	c.Files.Resolution = abs(c.Files.Resolution)
}

// Validate checks that the configured values are valid.
func (c *JobConfig) Validate() error {
	if _, err := jetmet.ParseCorrections(c.Corrections); err != nil {
		return err
	}
	if c.Systematic != nil {
		if _, err := jetmet.ParseSystematic(*c.Systematic); err != nil {
			return err
		}
	}
	if c.Era != nil {
		if _, err := jer.ParseEra(*c.Era); err != nil {
			return err
		}
	}
	if c.NSigma != nil && *c.NSigma < 0 {
		return fmt.Errorf("n_sigma must be non-negative, got %g", *c.NSigma)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MatchRadius != nil && *c.MatchRadius <= 0 {
		return fmt.Errorf("match_radius must be positive, got %g", *c.MatchRadius)
	}
	if c.Files != nil && c.Files.RhoBins < 0 {
		return fmt.Errorf("rho_bins must be non-negative, got %d", c.Files.RhoBins)
	}
	return nil
}

// GetIsData returns the is_data value or the default.
func (c *JobConfig) GetIsData() bool {
	if c.IsData == nil {
		return false
	}
	return *c.IsData
}

// GetCorrections returns the parsed corrections. Validate has already
// rejected unknown names.
func (c *JobConfig) GetCorrections() jetmet.Corrections {
	cs, err := jetmet.ParseCorrections(c.Corrections)
	if err != nil {
		return nil
	}
	return cs
}

// GetSystematic returns the systematic or SystNone.
func (c *JobConfig) GetSystematic() jetmet.Systematic {
	if c.Systematic == nil {
		return jetmet.SystNone
	}
	s, err := jetmet.ParseSystematic(*c.Systematic)
	if err != nil {
		return jetmet.SystNone
	}
	return s
}

// GetNSigma returns the n_sigma value or the default.
func (c *JobConfig) GetNSigma() float64 {
	if c.NSigma == nil {
		return 1
	}
	return *c.NSigma
}

// GetEra returns the era or the default (Run 2).
func (c *JobConfig) GetEra() jer.Era {
	if c.Era == nil {
		return jer.Run2
	}
	e, err := jer.ParseEra(*c.Era)
	if err != nil {
		return jer.Run2
	}
	return e
}

// GetGaussianSmearing returns the gaussian_smearing value or the default.
func (c *JobConfig) GetGaussianSmearing() bool {
	if c.GaussianSmearing == nil {
		return true
	}
	return *c.GaussianSmearing
}

// GetSeed returns the seed value or the default.
func (c *JobConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetWorkers returns the workers value or the default.
func (c *JobConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetMatchRadius returns the match_radius value or the default.
func (c *JobConfig) GetMatchRadius() float64 {
	if c.MatchRadius == nil {
		return jetmet.DefaultMatchRadius
	}
	return *c.MatchRadius
}

// GetResolutionMeasurement returns the resolution_measurement value or the default.
func (c *JobConfig) GetResolutionMeasurement() bool {
	if c.ResolutionMeasurement == nil {
		return false
	}
	return *c.ResolutionMeasurement
}

// GetOutputs returns the outputs, never nil.
func (c *JobConfig) GetOutputs() Outputs {
	if c.Outputs == nil {
		return Outputs{}
	}
	return *c.Outputs
}

// Modifier builds the jet/MET modifier configuration. Empty labels fall
// back to the modifier defaults.
func (c *JobConfig) Modifier() jetmet.Config {
	cfg := jetmet.Config{
		IsData:           c.GetIsData(),
		Corrections:      c.GetCorrections(),
		Systematic:       c.GetSystematic(),
		NSigma:           c.GetNSigma(),
		Era:              c.GetEra(),
		GaussianSmearing: c.GetGaussianSmearing(),
		Seed:             c.GetSeed(),
		MatchRadius:      c.GetMatchRadius(),
	}
	if c.Labels != nil {
		cfg.JetLabel = c.Labels.Jets
		cfg.GenJetLabel = c.Labels.GenJets
		cfg.METLabel = c.Labels.MET
	}
	return cfg.WithDefaults()
}

// ParameterFiles returns the parameter file set for jetmet.Setup.
func (c *JobConfig) ParameterFiles() jetmet.Files {
	if c.Files == nil {
		return jetmet.Files{ResolutionRhoBins: restable.DefaultRhoBins}
	}
	f := jetmet.Files{
		JECData:           c.Files.JECData,
		JECMC:             c.Files.JECMC,
		JESUncertainty:    c.Files.JESUncertainty,
		Resolution:        c.Files.Resolution,
		ResolutionRhoBins: c.Files.RhoBins,
	}
	if f.ResolutionRhoBins == 0 {
		f.ResolutionRhoBins = restable.DefaultRhoBins
	}
	return f
}
