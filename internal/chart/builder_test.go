package chart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/atlas/internal/storage"
	"github.com/starford/atlas/internal/svgtext"
)

func TestCompose(t *testing.T) {
	got := Compose("% T\nbody", [][]string{{"a", "b"}, {}, {"c"}})
	assert.Equal(t, "% T\nbody\nsvg: a\nsvg: b\n\n\nsvg: c\n", got)
	assert.Equal(t, "plain", Compose("plain", nil))
}

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "ops/diagram.svg", ResolveLink("ops", "diagram.svg"))
	assert.Equal(t, "shared/flow.svg", ResolveLink("ops/run", "../../shared/flow.svg"))
	assert.Equal(t, "top.svg", ResolveLink("ops", "/top.svg"))
	assert.Equal(t, "x.svg", ResolveLink(".", "./x.svg"))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	require.NoError(t, err)
	require.NoError(t, store.Write("ops/index.txt", []byte("% Ops\n![d](d.svg)\n![gone](missing.svg)\n![bad](../../etc/x.svg)\n")))
	require.NoError(t, store.Write("ops/d.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><text>Router</text></svg>`)))

	cache, err := svgtext.NewCache(8)
	require.NoError(t, err)
	b := NewBuilder(store, cache, nil)

	metas, err := store.ListCharts()
	require.NoError(t, err)
	require.Len(t, metas, 1)

	c, err := b.Build(metas[0])
	require.NoError(t, err)
	assert.Equal(t, "ops/", c.Slug)
	assert.Equal(t, "Ops", c.Title)
	assert.True(t, strings.HasSuffix(c.Text, "\nsvg: Router\n"), "text = %q", c.Text)
	assert.Equal(t, []string{"ops/index.txt", "ops/d.svg"}, c.Deps)
	assert.Equal(t, 1, cache.Len())

	again, err := b.Build(metas[0])
	require.NoError(t, err)
	assert.Equal(t, c.Text, again.Text)
}
