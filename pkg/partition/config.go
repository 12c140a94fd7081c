package partition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Supported descriptor formats
const (
	FormatConf = "conf"
	FormatYAML = "yaml"
)

type regionSection struct {
	Chromosomes  []string `mapstructure:"chromosomes" yaml:"chromosomes,flow"`
	RegionLength int      `mapstructure:"region_length" yaml:"region_length"`
}

type frequencySection struct {
	RareBoundary float64 `mapstructure:"rare_boundary" yaml:"rare_boundary"`
}

type codingSection struct {
	CodingEffectTypes []string `mapstructure:"coding_effect_types" yaml:"coding_effect_types,flow"`
}

type familySection struct {
	FamilyBinSize int `mapstructure:"family_bin_size" yaml:"family_bin_size"`
}

// document is the section layout shared by both formats
type document struct {
	RegionBin    *regionSection    `mapstructure:"region_bin" yaml:"region_bin,omitempty"`
	FrequencyBin *frequencySection `mapstructure:"frequency_bin" yaml:"frequency_bin,omitempty"`
	CodingBin    *codingSection    `mapstructure:"coding_bin" yaml:"coding_bin,omitempty"`
	FamilyBin    *familySection    `mapstructure:"family_bin" yaml:"family_bin,omitempty"`
}

// ParseFile reads a descriptor from a .conf (or suffix-less) ini file or a
// .yaml file
func ParseFile(filename string) (*Descriptor, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition description: %w", err)
	}
	switch ext := filepath.Ext(filename); ext {
	case "", ".conf", ".ini":
		return ParseString(string(data), FormatConf)
	case ".yaml", ".yml":
		return ParseString(string(data), FormatYAML)
	default:
		return nil, fmt.Errorf("unsupported partition description format %q", ext)
	}
}

// ParseString parses descriptor content. Empty content gives an
// unpartitioned descriptor.
func ParseString(content, format string) (*Descriptor, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return &Descriptor{}, nil
	}

	raw := make(map[string]interface{})
	switch format {
	case FormatConf:
		cfg, err := ini.Load([]byte(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partition description: %w", err)
		}
		for _, sec := range cfg.Sections() {
			if sec.Name() == ini.DefaultSection {
				continue
			}
			raw[sec.Name()] = sec.KeysHash()
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse partition description: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported partition description format %q", format)
	}
	return ParseMap(raw)
}

// ParseMap builds a descriptor from decoded sections. Chromosome and effect
// type lists may be given as lists or as comma separated strings; effect
// type groups are expanded.
func ParseMap(raw map[string]interface{}) (*Descriptor, error) {
	var doc document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid partition description: %w", err)
	}

	d := &Descriptor{}
	if doc.RegionBin != nil {
		d.Chromosomes = trimAll(doc.RegionBin.Chromosomes)
		d.RegionLength = doc.RegionBin.RegionLength
		if len(d.Chromosomes) == 0 {
			return nil, fmt.Errorf("region_bin section without chromosomes")
		}
		if d.RegionLength <= 0 {
			return nil, fmt.Errorf("region_bin section needs a positive region_length")
		}
	}
	if doc.FrequencyBin != nil {
		if doc.FrequencyBin.RareBoundary <= 0 {
			return nil, fmt.Errorf("frequency_bin section needs a positive rare_boundary")
		}
		d.RareBoundary = doc.FrequencyBin.RareBoundary
	}
	if doc.CodingBin != nil {
		d.CodingEffectTypes = variants.ExpandEffectTypes(doc.CodingBin.CodingEffectTypes)
		if len(d.CodingEffectTypes) == 0 {
			return nil, fmt.Errorf("coding_bin section without coding_effect_types")
		}
	}
	if doc.FamilyBin != nil {
		if doc.FamilyBin.FamilyBinSize <= 0 {
			return nil, fmt.Errorf("family_bin section needs a positive family_bin_size")
		}
		d.FamilyBinSize = doc.FamilyBin.FamilyBinSize
	}
	return d, nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (d *Descriptor) document() document {
	var doc document
	if d.HasRegionBins() {
		doc.RegionBin = &regionSection{Chromosomes: d.Chromosomes, RegionLength: d.RegionLength}
	}
	if d.HasFrequencyBins() {
		doc.FrequencyBin = &frequencySection{RareBoundary: d.RareBoundary}
	}
	if d.HasCodingBins() {
		doc.CodingBin = &codingSection{CodingEffectTypes: d.CodingEffectTypes}
	}
	if d.HasFamilyBins() {
		doc.FamilyBin = &familySection{FamilyBinSize: d.FamilyBinSize}
	}
	return doc
}

// Serialize writes the sections that are set. An unpartitioned descriptor
// serializes to the empty string.
func (d *Descriptor) Serialize(format string) (string, error) {
	if !d.HasPartitions() {
		return "", nil
	}
	doc := d.document()
	switch format {
	case FormatConf:
		cfg := ini.Empty()
		add := func(section, key, value string) error {
			_, err := cfg.Section(section).NewKey(key, value)
			return err
		}
		var errs []error
		if s := doc.RegionBin; s != nil {
			errs = append(errs,
				add(RegionBin, "chromosomes", strings.Join(s.Chromosomes, ",")),
				add(RegionBin, "region_length", strconv.Itoa(s.RegionLength)))
		}
		if s := doc.FrequencyBin; s != nil {
			errs = append(errs, add(FrequencyBin, "rare_boundary", strconv.FormatFloat(s.RareBoundary, 'g', -1, 64)))
		}
		if s := doc.CodingBin; s != nil {
			errs = append(errs, add(CodingBin, "coding_effect_types", strings.Join(s.CodingEffectTypes, ",")))
		}
		if s := doc.FamilyBin; s != nil {
			errs = append(errs, add(FamilyBin, "family_bin_size", strconv.Itoa(s.FamilyBinSize)))
		}
		for _, err := range errs {
			if err != nil {
				return "", fmt.Errorf("failed to serialize partition description: %w", err)
			}
		}
		var buf bytes.Buffer
		if _, err := cfg.WriteTo(&buf); err != nil {
			return "", fmt.Errorf("failed to serialize partition description: %w", err)
		}
		return buf.String(), nil
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("failed to serialize partition description: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported partition description format %q", format)
}

// String serializes in conf format
func (d *Descriptor) String() string {
	s, err := d.Serialize(FormatConf)
	if err != nil {
		return err.Error()
	}
	return s
}
