package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreFilter(t *testing.T) {
	filter := IgnoreFilter(append(DefaultIgnore, "build/**", "docs/*.md")...)

	tests := []struct {
		path string
		want bool
	}{
		{"templates/a.tmpl", true},
		{".git", false},
		{".git/HEAD", false},
		{"sub/.git/config", false},
		{".stencil/index.db", false},
		{"out/stencil.settings.yml.tmp", false},
		{"notes.txt~", false},
		{"build", false},
		{"build/x/y.go", false},
		{"builder/y.go", true},
		{"docs/readme.md", false},
		{"docs/sub/readme.md", true},
		{"other/docs/readme.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, filter(tt.path))
		})
	}
}

func TestIgnoreFilterEmptyPattern(t *testing.T) {
	assert.True(t, IgnoreFilter("", "/")("anything"))
}

func TestOnlyUnder(t *testing.T) {
	filter := OnlyUnder("src/app")
	assert.True(t, filter("src"))
	assert.True(t, filter("src/app"))
	assert.True(t, filter("src/app/main.go"))
	assert.False(t, filter("src/other"))
	assert.False(t, filter("srcapp"))
	assert.True(t, OnlyUnder(".")("anything"))
}
