package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"gopkg.in/yaml.v3"
)

type profileFile struct {
	Name    string                 `yaml:"name"    toml:"name"`
	Origin  string                 `yaml:"origin"  toml:"origin"`
	Targets map[string]model.Point `yaml:"targets" toml:"targets"`
}

// LoadProfile reads a coordinate profile. Files ending in .toml are TOML;
// anything else is YAML:
//
//	name: vbs-1920x1080
//	origin: client
//	targets:
//	  company_code_field: {x: 412, y: 233}
func LoadProfile(path string) (*model.CoordinateProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("read profile: %v", err)
	}
	var pf profileFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&pf); err != nil {
			return nil, configError("parse profile %s: %v", path, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&pf); err != nil {
			return nil, configError("parse profile %s: %v", path, err)
		}
	}
	if len(pf.Targets) == 0 {
		return nil, configError("profile %s defines no targets", path)
	}
	if pf.Name == "" {
		pf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return model.NewCoordinateProfile(pf.Name, model.Origin(strings.ToLower(pf.Origin)), pf.Targets)
}
