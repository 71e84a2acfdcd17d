package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/models"
)

func TestCapabilities_Catalog(t *testing.T) {
	caps := Capabilities()
	require.Len(t, caps, 25)

	seen := make(map[string]bool, len(caps))
	for _, c := range caps {
		assert.False(t, seen[c.ID], "duplicate capability id %s", c.ID)
		seen[c.ID] = true
		assert.NotEmpty(t, c.Name, "capability %s has no name", c.ID)
		assert.NotEmpty(t, c.Description, "capability %s has no description", c.ID)
	}
}

func TestCapabilities_FivePerCategory(t *testing.T) {
	prefixes := map[models.CapabilityCategory]string{
		models.CapabilityPlanning:       "P-",
		models.CapabilityImplementation: "I-",
		models.CapabilityVerification:   "V-",
		models.CapabilityReview:         "R-",
		models.CapabilityResearch:       "S-",
	}

	for cat, prefix := range prefixes {
		t.Run(string(cat), func(t *testing.T) {
			caps := CapabilitiesByCategory(cat)
			require.Len(t, caps, 5)
			for _, c := range caps {
				assert.True(t, strings.HasPrefix(c.ID, prefix),
					"capability %s not under prefix %s", c.ID, prefix)
				assert.Equal(t, cat, c.Category)
			}
		})
	}
}

func TestCapabilities_CatalogIsCopied(t *testing.T) {
	first := Capabilities()
	first[0].Name = "clobbered"

	again := Capabilities()
	assert.NotEqual(t, "clobbered", again[0].Name)
}

func TestCapabilityByID(t *testing.T) {
	c, ok := CapabilityByID("I-02")
	require.True(t, ok)
	assert.Equal(t, "refactoring", c.Name)
	assert.Equal(t, models.CapabilityImplementation, c.Category)

	_, ok = CapabilityByID("Z-99")
	assert.False(t, ok)
}

func TestValidateCapabilityIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr string
	}{
		{name: "all known", ids: []string{"P-01", "V-03", "S-05"}},
		{name: "empty list", ids: nil},
		{name: "unknown id", ids: []string{"P-01", "X-01"}, wantErr: `unknown capability "X-01"`},
		{name: "wrong case", ids: []string{"p-01"}, wantErr: `unknown capability "p-01"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilityIDs(tt.ids)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
