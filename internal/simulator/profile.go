package simulator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes the simulated instrument.
type Profile struct {
	// Identification is the reply to *IDN?.
	Identification string `yaml:"identification"`

	// Initial configuration values.
	CenterWavelength float64 `yaml:"center_wavelength"` // nm
	WavelengthRange  float64 `yaml:"wavelength_range"`  // nm
	SampleResolution float64 `yaml:"sample_resolution"` // nm
	DUTLength        float64 `yaml:"dut_length"`        // m

	// Points fixes the number of points of every array. Zero derives it from the
	// wavelength range and the sample resolution.
	Points int `yaml:"points"`

	// ScanErrorCode, when non-zero, is reported after every scan.
	ScanErrorCode        int    `yaml:"scan_error_code"`
	ScanErrorDescription string `yaml:"scan_error_description"`

	// ResponseDelay is waited before each reply.
	ResponseDelay time.Duration `yaml:"response_delay"`

	// ChunkSize splits every reply into writes of at most ChunkSize bytes, separated
	// by ChunkDelay. Zero writes each reply at once.
	ChunkSize  int           `yaml:"chunk_size"`
	ChunkDelay time.Duration `yaml:"chunk_delay"`

	// ErrorQueueSize bounds the instrument error queue.
	ErrorQueueSize int `yaml:"error_queue_size"`
}

// DefaultProfile returns the profile of a freshly powered instrument.
func DefaultProfile() Profile {
	return Profile{
		Identification:   "OVA Simulator,OVA5000,SIM00001,1.0.0",
		CenterWavelength: 1550,
		WavelengthRange:  4,
		SampleResolution: 0.0016,
		DUTLength:        1.5,
		ErrorQueueSize:   32,
	}
}

// ParseProfile decodes a YAML profile. Fields missing from data keep their default value.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("simulator: parse profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	return p, nil
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("simulator: read profile: %w", err)
	}

	return ParseProfile(data)
}

// Validate reports the first invalid field of the profile.
func (p Profile) Validate() error {
	switch {
	case p.Identification == "":
		return errors.New("simulator: identification must not be empty")
	case p.WavelengthRange <= 0:
		return errors.New("simulator: wavelength range must be positive")
	case p.SampleResolution <= 0:
		return errors.New("simulator: sample resolution must be positive")
	case p.Points < 0:
		return errors.New("simulator: points must not be negative")
	case p.ChunkSize < 0:
		return errors.New("simulator: chunk size must not be negative")
	}

	return nil
}
