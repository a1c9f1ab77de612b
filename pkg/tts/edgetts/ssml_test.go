package edgetts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSSML(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"Plain", "First up, Jazz Night at Blue Bamboo.", "First up, Jazz Night at Blue Bamboo."},
		{"Ampersand", "Rock & Roll Revival", "Rock &amp; Roll Revival"},
		{"Apostrophe", "And it's free!", "And it&apos;s free!"},
		{"Markup", "<b>Gala</b>", "&lt;b&gt;Gala&lt;/b&gt;"},
		{"Quotes", `The "Best of Orlando" market`, "The &quot;Best of Orlando&quot; market"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSSML("en-US-AvaMultilingualNeural", tt.text)
			assert.True(t, strings.HasPrefix(got, "<speak version='1.0'"), got)
			assert.Contains(t, got, "<voice name='en-US-AvaMultilingualNeural'>"+tt.want+"</voice>")
			assert.True(t, strings.HasSuffix(got, "</speak>"), got)
		})
	}
}
