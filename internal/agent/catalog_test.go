package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Shape(t *testing.T) {
	c := DefaultCatalog()

	primary := c.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, "cynessa", primary.Name)
	assert.False(t, primary.RequiresOnboarding)

	all := c.All()
	assert.Len(t, all, 4)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	c := DefaultCatalog()

	for _, name := range []string{"apex", "Apex", "APEX", "  apex  "} {
		a, err := c.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, "apex", a.Name)
	}
}

func TestResolve_LegacyAlias(t *testing.T) {
	c := DefaultCatalog()

	a, err := c.Resolve("iris")
	require.NoError(t, err)
	assert.Equal(t, "cynessa", a.Name)
	assert.True(t, a.Primary)
}

func TestResolve_Unknown(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Resolve("nonexistent")
	assert.Error(t, err)
}

func TestNewCatalog_RejectsZeroPrimaries(t *testing.T) {
	_, err := NewCatalog([]Agent{{Name: "solo"}})
	assert.Error(t, err)
}

func TestNewCatalog_RejectsTwoPrimaries(t *testing.T) {
	_, err := NewCatalog([]Agent{
		{Name: "one", Primary: true},
		{Name: "two", Primary: true},
	})
	assert.Error(t, err)
}

func TestNewCatalog_RejectsDuplicateAlias(t *testing.T) {
	_, err := NewCatalog([]Agent{
		{Name: "one", Primary: true, Aliases: []string{"two"}},
		{Name: "two"},
	})
	assert.Error(t, err)
}
