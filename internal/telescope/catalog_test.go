package telescope

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"MAINANT", "MCA1", "MCA2", "MCA3", "MCA4"}, c.Names())

	loc, ok := c.Location("MAINANT")
	require.True(t, ok)
	assert.Equal(t, 60.21780915277778, loc.Latitude)
	assert.Equal(t, 24.39311053055556, loc.Longitude)
	assert.Equal(t, 79.191, loc.Height)

	loc, ok = c.Location("mca2")
	require.True(t, ok)
	assert.Equal(t, 71.4, loc.Height)

	// Listed without coordinates.
	_, ok = c.Location("MCA3")
	assert.False(t, ok)
	assert.True(t, c.Known("MCA3"))

	_, ok = c.Location("EFFELSBERG")
	assert.False(t, ok)
	assert.False(t, c.Known("EFFELSBERG"))
}

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(`
telescopes:
  dish:
    latitude: 10
    longitude: 20
  full:
    latitude: -10
    longitude: 200
    height: 5
`))
	require.NoError(t, err)

	_, ok := c.Location("DISH")
	assert.False(t, ok, "height is missing")

	loc, ok := c.Location("Full")
	require.True(t, ok)
	assert.Equal(t, -10.0, loc.Latitude)

	_, err = Parse(strings.NewReader("telescopes:\n  bad:\n    latitude: 91\n"))
	assert.ErrorContains(t, err, "latitude")

	_, err = Parse(strings.NewReader("telescopes: [1, 2]"))
	assert.Error(t, err)

	c, err = Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Names())
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Names(), 5)

	path := filepath.Join(t.TempDir(), "telescopes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telescopes:
  MCA3:
    latitude: 60.2174
    longitude: 24.3917
    height: 60
  ONSALA:
    latitude: 57.3931
    longitude: 11.9178
    height: 20
`), 0o644))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Names(), 6)

	loc, ok := c.Location("MCA3")
	require.True(t, ok)
	assert.Equal(t, 60.0, loc.Height)

	_, ok = c.Location("MAINANT")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
