package rkyv

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/500gitnotfound/rkyv/errors"
)

// Profile selects the serializer preset for an environment.
type Profile string

const (
	// ProfileBounded uses a fixed scratch buffer and no sharing.
	ProfileBounded Profile = "bounded"
	// ProfileGeneral uses a growable scratch arena and full sharing.
	ProfileGeneral Profile = "general"
)

// DefaultScratchSize is the bounded profile's scratch buffer size when none
// is configured.
const DefaultScratchSize = 4096

// Options configures Encode and EncodeTo.
type Options struct {
	Profile Profile `yaml:"profile"`
	// ScratchSize is the scratch buffer size for the bounded profile and the
	// first arena block size for the general profile.
	ScratchSize int `yaml:"scratch_size"`
	// MaxScratch caps the general profile's arena. Zero means unbounded.
	MaxScratch int `yaml:"max_scratch"`
	// Compress wraps EncodeTo output in a zstd frame.
	Compress         bool `yaml:"compress"`
	CompressionLevel int  `yaml:"compression_level"`
}

// DefaultOptions returns the general profile.
func DefaultOptions() Options {
	return Options{Profile: ProfileGeneral}
}

// BoundedOptions returns the bounded profile with the given scratch size.
// Encode and EncodeTo allocate that scratch buffer on every call; use
// EncodeInto to supply both the scratch and the output memory.
func BoundedOptions(scratchSize int) Options {
	return Options{Profile: ProfileBounded, ScratchSize: scratchSize}
}

// Validate checks that the options describe a usable profile.
func (o Options) Validate() error {
	switch o.Profile {
	case ProfileBounded, ProfileGeneral:
	default:
		return errors.New(errors.ComponentConfig, errors.KindConfig).
			Detail("unknown profile %q", o.Profile).
			Value(o.Profile).
			Build()
	}
	if o.ScratchSize < 0 {
		return errors.New(errors.ComponentConfig, errors.KindConfig).
			Detail("scratch_size must not be negative, got %d", o.ScratchSize).
			Build()
	}
	if o.MaxScratch < 0 {
		return errors.New(errors.ComponentConfig, errors.KindConfig).
			Detail("max_scratch must not be negative, got %d", o.MaxScratch).
			Build()
	}
	if o.Profile == ProfileBounded && o.MaxScratch != 0 {
		return errors.New(errors.ComponentConfig, errors.KindConfig).
			Detail("max_scratch applies only to the %s profile", ProfileGeneral).
			Build()
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > 22 {
		return errors.New(errors.ComponentConfig, errors.KindConfig).
			Detail("compression_level must be between 0 and 22, got %d", o.CompressionLevel).
			Build()
	}
	return nil
}

// ParseOptions decodes YAML options on top of DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.New(errors.ComponentConfig, errors.KindConfig).
			Cause(err).
			Detail("failed to parse options").
			Build()
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadOptions reads YAML options from path.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.New(errors.ComponentConfig, errors.KindConfig).
			Cause(err).
			Detail("failed to read options file %s", path).
			Build()
	}
	return ParseOptions(data)
}
