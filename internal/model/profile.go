package model

import (
	"fmt"
	"sort"
	"strings"
)

// Origin is the reference point of profile coordinates.
type Origin string

const (
	OriginClient Origin = "client"
	OriginScreen Origin = "screen"
)

// Point is a pixel offset.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// CoordinateProfile maps named UI targets to pixel offsets for one screen
// resolution and application version. It is immutable once built.
type CoordinateProfile struct {
	name    string
	origin  Origin
	targets map[string]Point
}

// NewCoordinateProfile copies targets into a new profile. An empty origin
// defaults to OriginClient.
func NewCoordinateProfile(name string, origin Origin, targets map[string]Point) (*CoordinateProfile, error) {
	switch origin {
	case "":
		origin = OriginClient
	case OriginClient, OriginScreen:
	default:
		return nil, NewError(KindConfigurationError, "profile", "unknown origin %q (expected client or screen)", origin)
	}
	copied := make(map[string]Point, len(targets))
	for k, v := range targets {
		if strings.TrimSpace(k) == "" {
			return nil, NewError(KindConfigurationError, "profile", "empty target name")
		}
		copied[k] = v
	}
	return &CoordinateProfile{name: name, origin: origin, targets: copied}, nil
}

func (p *CoordinateProfile) Name() string   { return p.name }
func (p *CoordinateProfile) Origin() Origin { return p.origin }

// Lookup returns the offset for target or a ConfigurationError.
func (p *CoordinateProfile) Lookup(target string) (Point, error) {
	if p == nil {
		return Point{}, NewError(KindConfigurationError, "profile", "no coordinate profile loaded")
	}
	pt, ok := p.targets[target]
	if !ok {
		return Point{}, NewError(KindConfigurationError, "profile", "target %q not defined in profile %q", target, p.name)
	}
	return pt, nil
}

// Require fails with a ConfigurationError naming every missing target.
func (p *CoordinateProfile) Require(targets ...string) error {
	if p == nil {
		return NewError(KindConfigurationError, "profile", "no coordinate profile loaded")
	}
	var missing []string
	for _, t := range targets {
		if _, ok := p.targets[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return NewError(KindConfigurationError, "profile", "profile %q is missing targets: %s", p.name, strings.Join(missing, ", "))
	}
	return nil
}

// Names returns the target names in sorted order.
func (p *CoordinateProfile) Names() []string {
	names := make([]string, 0, len(p.targets))
	for k := range p.targets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Targets returns a copy of the target map.
func (p *CoordinateProfile) Targets() map[string]Point {
	out := make(map[string]Point, len(p.targets))
	for k, v := range p.targets {
		out[k] = v
	}
	return out
}
