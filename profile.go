package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// profile holds reusable format settings loaded with --profile. Flags given on
// the command line win over profile values.
type profile struct {
	Label        string `yaml:"label"`
	Serial       string `yaml:"serial"`
	RandomSerial bool   `yaml:"random_serial"`
	Sync         *bool  `yaml:"sync"`
	TUI          bool   `yaml:"tui"`
}

func loadProfile(fs afero.Fs, path string) (profile, error) {
	var p profile
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return p, errors.Wrap(err, "read profile")
	}
	if err := yaml.UnmarshalStrict(b, &p); err != nil {
		return p, errors.Wrapf(err, "parse profile %s", path)
	}
	if err := p.validate(); err != nil {
		return p, errors.Wrapf(err, "profile %s", path)
	}
	return p, nil
}

func (p profile) validate() error {
	var result *multierror.Error
	if err := checkLabel(p.Label); err != nil {
		result = multierror.Append(result, err)
	}
	if p.Serial != "" {
		if _, err := parseSerial(p.Serial); err != nil {
			result = multierror.Append(result, err)
		}
		if p.RandomSerial {
			result = multierror.Append(result, fmt.Errorf("serial and random_serial are mutually exclusive"))
		}
	}
	return result.ErrorOrNil()
}

// checkLabel rejects bytes a FAT short name can never hold. Length is not
// checked; long labels are truncated when written.
func checkLabel(label string) error {
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c < 0x20 || c > 0x7E {
			return fmt.Errorf("label %q contains non-printable or non-ASCII byte 0x%02X", label, c)
		}
		if strings.IndexByte(`"*+,./:;<=>?[\]|`, c) >= 0 {
			return fmt.Errorf("label %q contains %q, which FAT labels cannot hold", label, c)
		}
	}
	return nil
}

// parseSerial accepts the DOS display form XXXX-XXXX or a plain hex number with
// an optional 0x prefix.
func parseSerial(s string) (uint32, error) {
	v := strings.TrimSpace(s)
	if len(v) == 9 && v[4] == '-' {
		v = v[:4] + v[5:]
	}
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid serial %q: want XXXX-XXXX or hex", s)
	}
	return uint32(n), nil
}

func formatSerial(v uint32) string {
	return fmt.Sprintf("%04X-%04X", v>>16, v&0xFFFF)
}
