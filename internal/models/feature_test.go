package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeature(t *testing.T) {
	for _, feature := range AllFeatures() {
		got, err := ParseFeature(feature.String())
		assert.NoError(t, err)
		assert.Equal(t, feature, got)
	}

	_, err := ParseFeature("telepathy")
	assert.Error(t, err)

	_, err = ParseFeature("")
	assert.Error(t, err)
}

func TestColumnPrefix_DefinedForAllFeatures(t *testing.T) {
	for _, feature := range AllFeatures() {
		assert.NotEmpty(t, feature.ColumnPrefix(), "feature %s has no column prefix", feature)
	}
}
