package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("listing")
	require.True(t, strings.HasPrefix(id, "listing-"))
	require.NotEqual(t, id, GenerateID("listing"))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Steel Pipes Q3":       "steel-pipes-q3",
		"  Copper Wire RFQ  ":  "copper-wire-rfq",
		"A/B -- Test (2026)":   "a-b-test-2026",
		"already-a-slug":       "already-a-slug",
		"Ünïcode gets dropped": "n-code-gets-dropped",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}
