// Package config loads the top-level run configuration: product
// identity, protocol mode, per-image firmware records and their
// timing budgets. Deserialization is delegated to gopkg.in/yaml.v3 and
// semantic versions to github.com/Masterminds/semver/v3, matching the
// corpus's preferred libraries for structured config and versioning.
// Address normalization-to-bytes is modeled as a one-way flag exactly
// as the spec requires: consulted once per run, never twice.
package config

import (
	"os"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/raffber/mergetool/internal/addr"
	"github.com/raffber/mergetool/internal/errs"
	"github.com/raffber/mergetool/internal/firmware"
)

var productNamePattern = regexp.MustCompile(`^\w+[\w-]*\w+$`)

// Timings holds the per-stage wait budgets the script compiler feeds
// into the protocol capability.
type Timings struct {
	DataSend     uint32 `yaml:"data_send"`
	CRCCheck     uint32 `yaml:"crc_check"`
	DataSendDone uint32 `yaml:"data_send_done"`
	LeaveBtl     uint32 `yaml:"leave_btl"`
	EraseTime    uint32 `yaml:"erase_time"`
}

// AddressRange is the begin/end pair as it appears in configuration,
// expressed in the unit (word or byte) selected by the device profile
// until Config.NormalizeAddresses has run.
type AddressRange struct {
	Begin uint64 `yaml:"begin"`
	End   uint64 `yaml:"end"`
}

func (r AddressRange) toCore() addr.Range { return addr.Range{Begin: r.Begin, End: r.End} }

// DeviceProfile mirrors addr.Profile in its YAML-facing form.
type DeviceProfile struct {
	PageSize       uint64 `yaml:"page_size"`
	Endianness     string `yaml:"endianness"` // "little" (default) or "big"
	WordAddressing bool   `yaml:"word_addressing"`
}

func (d DeviceProfile) toCore() addr.Profile {
	e := addr.Little
	if d.Endianness == "big" {
		e = addr.Big
	}
	return addr.Profile{PageSize: d.PageSize, Endianness: e, WordAddressing: d.WordAddressing}
}

// FirmwareConfig is one node's update record: node id, optional
// semantic version (with an optional changelog fallback when the
// version is omitted), image paths and ranges, device profile, header
// offset, data packet size and per-stage timings.
type FirmwareConfig struct {
	NodeID          uint8         `yaml:"node_id"`
	Version         *string       `yaml:"version,omitempty"`
	ChangelogPath   string        `yaml:"changelog_path,omitempty"`
	BtlPath         string        `yaml:"btl_path"`
	AppPath         string        `yaml:"app_path"`
	AppAddress      AddressRange  `yaml:"app_address"`
	BtlAddress      AddressRange  `yaml:"btl_address"`
	Format          string        `yaml:"hex_file_format"` // "intel_hex" (default) or "s_record"
	Device          DeviceProfile `yaml:"device_config"`
	HeaderOffset    uint64        `yaml:"header_offset"`
	WriteDataSize   int           `yaml:"write_data_size"`
	IncludeInScript bool          `yaml:"include_in_script"`
	Timings         Timings       `yaml:"timings"`
}

// SemVer parses the optional version string, returning nil if absent.
func (f *FirmwareConfig) SemVer() (*semver.Version, error) {
	if f.Version == nil || *f.Version == "" {
		return nil, nil
	}
	return semver.NewVersion(*f.Version)
}

func (f *FirmwareConfig) hexFormat() firmware.Format {
	if f.Format == "s_record" {
		return firmware.SRecord
	}
	return firmware.IntelHex
}

// Config is the top-level run configuration.
type Config struct {
	ProductID           uint16           `yaml:"product_id"`
	ProductName         string           `yaml:"product_name"`
	BtlVersion          uint8            `yaml:"btl_version"`
	UseBackdoor         bool             `yaml:"use_backdoor"`
	Blocking            bool             `yaml:"blocking"`
	TimeStateTransition uint32           `yaml:"time_state_transition"`
	Images              []FirmwareConfig `yaml:"images"`

	addressesNormalized bool
}

// Load reads and parses a YAML configuration file, then validates the
// product name.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapIo(path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errs.WrapCannotParseConfig(err)
	}
	if !productNamePattern.MatchString(c.ProductName) {
		return nil, errs.ErrInvalidProductName
	}
	return &c, nil
}

// Save serializes the configuration back to YAML.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return errs.WrapCannotParseConfig(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errs.WrapIo(path, err)
	}
	return nil
}

// NormalizeAddresses multiplies every address-typed field by the word
// multiplier when the device is word-addressed. It is idempotent in
// effect but must be consulted exactly once per run: a second call is
// a no-op thanks to the one-way flag, never a double multiplication.
func (c *Config) NormalizeAddresses() {
	if c.addressesNormalized {
		return
	}
	for i := range c.Images {
		img := &c.Images[i]
		word := img.Device.WordAddressing
		img.AppAddress = fromCore(img.AppAddress.toCore().ToBytes(word))
		img.BtlAddress = fromCore(img.BtlAddress.toCore().ToBytes(word))
	}
	c.addressesNormalized = true
}

func fromCore(r addr.Range) AddressRange {
	return AddressRange{Begin: r.Begin, End: r.End}
}

// AddressesNormalized reports whether NormalizeAddresses has run.
func (c *Config) AddressesNormalized() bool { return c.addressesNormalized }

// AppRange and BtlRange expose the ranges as addr.Range for pipeline
// consumption, after normalization.
func (f *FirmwareConfig) AppRange() addr.Range { return f.AppAddress.toCore() }
func (f *FirmwareConfig) BtlRange() addr.Range { return f.BtlAddress.toCore() }
func (f *FirmwareConfig) Profile() addr.Profile { return f.Device.toCore() }
func (f *FirmwareConfig) HexFormat() firmware.Format { return f.hexFormat() }
