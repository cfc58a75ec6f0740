package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingAccessors(t *testing.T) {
	b := Binding{
		"p":     "5",
		"w":     "12.7",
		"on":    "true",
		"lines": "one\ntwo\n\nthree",
		"name":  "Foo",
		"ref":   "ref 0192a3f0",
	}

	assert.Equal(t, 5, b.Int("p"))
	assert.Equal(t, 12, b.Int("w"), "decimal values truncate")
	assert.InDelta(t, 12.7, b.Float("w"), 1e-9)
	assert.True(t, b.Bool("on"))
	assert.Equal(t, []string{"one", "two", "three"}, b.Strings("lines"))
	assert.Equal(t, "Foo", b.String("name"))

	ref, ok := b.Ref("ref")
	assert.True(t, ok)
	assert.Equal(t, "0192a3f0", ref)
}

func TestBindingMissingAndInvalid(t *testing.T) {
	b := Binding{"name": "Foo"}

	assert.Equal(t, 0, b.Int("name"))
	assert.Equal(t, 0, b.Int("missing"))
	assert.Zero(t, b.Float("missing"))
	assert.False(t, b.Bool("name"))
	assert.Nil(t, b.Strings("missing"))
	assert.False(t, b.Has("missing"))

	_, ok := b.Ref("missing")
	assert.False(t, ok)

	var dst []int
	assert.Error(t, b.JSON("missing", &dst))
	assert.Error(t, b.JSON("name", &dst))
}

func TestBindingPoints(t *testing.T) {
	b := Binding{"region": `[{"x":0,"y":0},{"x":10,"y":0},{"x":10,"y":5}]`}

	pts, err := b.Points("region")
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0}, {10, 0}, {10, 5}}, pts)
}

func TestBindingKeysCloneMerge(t *testing.T) {
	b := Binding{"w": "1", "p": "2"}
	assert.Equal(t, []string{"p", "w"}, b.Keys())
	assert.Equal(t, 2, b.Len())

	c := b.Clone()
	c["w"] = "9"
	assert.Equal(t, "1", b["w"], "clone is independent")

	b.Merge(Binding{"w": "3", "z": "4"})
	assert.Equal(t, map[string]string{"w": "3", "p": "2", "z": "4"}, b.Map())

	var nilBinding Binding
	assert.False(t, nilBinding.Has("x"))
	assert.Equal(t, 0, nilBinding.Len())
}
