package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_LaterLayerWins(t *testing.T) {
	html := map[string]string{"a": "1"}
	md := map[string]string{"a": "2", "b": "3"}
	assert.Equal(t, Metadata{"a": "2", "b": "3"}, Merge(html, md))
	assert.Equal(t, Metadata{"a": "1", "b": "3"}, Merge(md, html))
}

func TestMerge_NormalizesKeys(t *testing.T) {
	assert.Equal(t, Metadata{"image": "x"}, Merge(map[string]string{" Image ": "x"}))
}

func TestIsDraft(t *testing.T) {
	tests := []struct {
		name string
		m    Metadata
		want bool
	}{
		{"absent", Metadata{}, false},
		{"true", Metadata{"draft": "true"}, true},
		{"yes padded", Metadata{"draft": "  YES "}, true},
		{"oui brouillon", Metadata{"brouillon": "Oui"}, true},
		{"false", Metadata{"draft": "false"}, false},
		{"non", Metadata{"brouillon": "non"}, false},
		{"either key suffices", Metadata{"draft": "no", "brouillon": "oui"}, true},
		{"other token", Metadata{"draft": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.IsDraft())
		})
	}
}

func TestFinalize(t *testing.T) {
	m := Metadata{"path": "x", "logo_file": "l.png", "edit_url": "https://e", "author": "Camille", "title": "ignored"}
	out := m.Finalize("Accueil", 2)
	assert.Equal(t, Metadata{"author": "Camille", "title": "Accueil", "order": 2}, out)
	assert.Equal(t, "x", m["path"], "input is not mutated")
}

func TestMarshal_PreservesNonASCII(t *testing.T) {
	out, err := Metadata{"title": "C'est l'été <3", "order": 0}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"order\": 0,\n  \"title\": \"C'est l'été <3\"\n}\n", string(out))

	back, err := Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Order())
	assert.Equal(t, "C'est l'été <3", back.String("title"))
}

func TestFirst(t *testing.T) {
	m := Metadata{"summary": "s", "site_description": " "}
	assert.Equal(t, "s", m.First("site_description", "summary"))
	assert.Empty(t, m.First("missing"))
	assert.Equal(t, -1, m.Order())
}
