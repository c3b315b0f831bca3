// Package yamlspec is a file-backed throttle.IThrottleSpec, the
// configuration ambient stack this engine needs to turn a caller's YAML
// document into live per-bin limits.
package yamlspec

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/danielepagano/throttlepool/lib/throttle"
)

// BinLimits is the throttle specification for a single bin name.
type BinLimits struct {
	MaxOpenConnections uint32  `yaml:"maxOpenConnections"`
	MinMsPerFetch      uint64  `yaml:"minMsPerFetch"`
	MinMsPerByte       float64 `yaml:"minMsPerByte"`
}

// Spec is a throttle.IThrottleSpec backed by a YAML document. Bin names
// absent from Bins fall back to Default.
type Spec struct {
	Default BinLimits            `yaml:"default"`
	Bins    map[string]BinLimits `yaml:"bins"`
}

var _ throttle.IThrottleSpec = (*Spec)(nil)

func (s *Spec) limits(binName string) BinLimits {
	if s == nil {
		return BinLimits{}
	}
	if l, ok := s.Bins[binName]; ok {
		return l
	}
	return s.Default
}

// MaxOpenConnections implements throttle.IThrottleSpec.
func (s *Spec) MaxOpenConnections(binName string) uint32 {
	return s.limits(binName).MaxOpenConnections
}

// MinMillisecondsPerFetch implements throttle.IThrottleSpec.
func (s *Spec) MinMillisecondsPerFetch(binName string) uint64 {
	return s.limits(binName).MinMsPerFetch
}

// MinMillisecondsPerByte implements throttle.IThrottleSpec.
func (s *Spec) MinMillisecondsPerByte(binName string) float64 {
	return s.limits(binName).MinMsPerByte
}

// Load reads a throttle specification from a YAML file on disk.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read throttle spec %s", path)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parse throttle spec %s", path)
	}
	return &s, nil
}
