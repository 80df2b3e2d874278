package telescope

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

//go:embed locations.yaml
var defaultCatalog []byte

// Coordinates are the optional geodetic coordinates of a telescope. All three
// must be present for the location to be usable.
type Coordinates struct {
	Latitude  *float64 `yaml:"latitude"`  // Degrees
	Longitude *float64 `yaml:"longitude"` // Degrees
	Height    *float64 `yaml:"height"`    // Meters above the WGS-84 ellipsoid
}

// Location returns the coordinates as a location when all of them are known.
func (c Coordinates) Location() (spectrum.Location, bool) {
	if c.Latitude == nil || c.Longitude == nil || c.Height == nil {
		return spectrum.Location{}, false
	}
	return spectrum.Location{Latitude: *c.Latitude, Longitude: *c.Longitude, Height: *c.Height}, true
}

// Validate checks the coordinate ranges of whatever values are set.
func (c Coordinates) Validate() error {
	if c.Latitude != nil && (*c.Latitude < -90 || *c.Latitude > 90) {
		return fmt.Errorf("latitude %g is out of range [-90, 90]", *c.Latitude)
	}
	if c.Longitude != nil && (*c.Longitude < -180 || *c.Longitude > 360) {
		return fmt.Errorf("longitude %g is out of range [-180, 360]", *c.Longitude)
	}
	return nil
}

type document struct {
	Telescopes map[string]Coordinates `yaml:"telescopes"`
}

// Catalog maps telescope identities to their coordinates. Identities are case
// insensitive.
type Catalog struct {
	telescopes map[string]Coordinates
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("telescope: built-in catalog: %s", err))
	}
	return c
}

// Parse reads a YAML catalog.
func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding telescope catalog: %w", err)
	}

	c := Catalog{telescopes: make(map[string]Coordinates, len(doc.Telescopes))}
	for name, coords := range doc.Telescopes {
		if err := coords.Validate(); err != nil {
			return nil, fmt.Errorf("telescope %s: %w", name, err)
		}
		c.telescopes[strings.ToUpper(name)] = coords
	}
	return &c, nil
}

// Load returns the built-in catalog overlaid with the entries of the YAML file
// at path. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening telescope catalog: %w", err)
	}
	defer f.Close()

	override, err := Parse(f)
	if err != nil {
		return nil, err
	}
	for name, coords := range override.telescopes {
		c.telescopes[name] = coords
	}
	return c, nil
}

// Location returns the geodetic location of the telescope. The boolean result
// is false when the telescope is unknown or its coordinates are incomplete.
func (c *Catalog) Location(telescope string) (spectrum.Location, bool) {
	coords, ok := c.telescopes[strings.ToUpper(telescope)]
	if !ok {
		return spectrum.Location{}, false
	}
	return coords.Location()
}

// Known reports whether the telescope is listed, with or without coordinates.
func (c *Catalog) Known(telescope string) bool {
	_, ok := c.telescopes[strings.ToUpper(telescope)]
	return ok
}

// Names returns the listed telescope identities in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.telescopes))
	for name := range c.telescopes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
