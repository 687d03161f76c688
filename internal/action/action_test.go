package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfirm(t *testing.T) {
	a, err := Parse("confirm:container:web-1:stop")
	require.NoError(t, err)
	c, ok := a.(Confirm)
	require.True(t, ok)
	assert.Equal(t, "container", c.Action)
	assert.Equal(t, "web-1:stop", c.Data)
}

func TestParseCancel(t *testing.T) {
	a, err := Parse("cancel:cmd:docker-prune")
	require.NoError(t, err)
	c, ok := a.(Cancel)
	require.True(t, ok)
	assert.Equal(t, "cmd", c.Action)
	assert.Equal(t, "docker-prune", c.Data)
}

func TestParseNavBack(t *testing.T) {
	a, err := Parse("nav:back")
	require.NoError(t, err)
	_, ok := a.(NavBack)
	assert.True(t, ok)
}

func TestParseMain(t *testing.T) {
	a, err := Parse("main:status")
	require.NoError(t, err)
	m, ok := a.(Main)
	require.True(t, ok)
	assert.Equal(t, "status", m.Screen)
}

func TestParseDockerWithParams(t *testing.T) {
	a, err := Parse("docker:stats:web-1")
	require.NoError(t, err)
	d, ok := a.(Docker)
	require.True(t, ok)
	assert.Equal(t, "stats", d.Action)
	assert.Equal(t, []string{"web-1"}, d.Params)
}

func TestParseContainer(t *testing.T) {
	a, err := Parse("container:web-1:stop")
	require.NoError(t, err)
	c, ok := a.(Container)
	require.True(t, ok)
	assert.Equal(t, "web-1", c.Name)
	assert.Equal(t, "stop", c.Action)
	assert.False(t, c.Confirmed, "parsing must never yield a confirmed action")
}

func TestParseTerminal(t *testing.T) {
	a, err := Parse("terminal:system")
	require.NoError(t, err)
	trm, ok := a.(Terminal)
	require.True(t, ok)
	assert.Equal(t, "system", trm.Section)
	assert.False(t, trm.Exit)

	a, err = Parse("terminal:exit")
	require.NoError(t, err)
	trm, ok = a.(Terminal)
	require.True(t, ok)
	assert.True(t, trm.Exit)
}

func TestParseCommand(t *testing.T) {
	a, err := Parse("cmd:disk-usage")
	require.NoError(t, err)
	c, ok := a.(Command)
	require.True(t, ok)
	assert.Equal(t, "disk-usage", c.ID)
}

func TestParseUnknownCategory(t *testing.T) {
	a, err := Parse("bogus:whatever")
	require.NoError(t, err)
	u, ok := a.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "bogus:whatever", u.Raw)
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"confirm",
		"nav:forward",
		"main:",
		"container:web-1",
		"container:web-1:stop:extra",
		"cmd:",
		"terminal:",
	}
	for _, raw := range cases {
		_, err := Parse(raw)
		assert.Error(t, err, "expected error for %q", raw)
	}
}

func TestCategoryNames(t *testing.T) {
	cases := map[string]Action{
		"confirm":   Confirm{Action: "container", Data: "web-1:stop"},
		"cancel":    Cancel{Action: "cmd", Data: "docker-prune"},
		"nav":       NavBack{},
		"main":      Main{Screen: "menu"},
		"docker":    Docker{Action: "list"},
		"container": Container{Name: "web-1", Action: "stop"},
		"terminal":  Terminal{Section: "system"},
		"cmd":       Command{ID: "disk-usage"},
		"unknown":   Unknown{Raw: "bogus:x"},
	}
	for want, a := range cases {
		assert.Equal(t, want, a.Category())
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []string{
		"confirm:container:web-1:stop",
		"cancel:cmd:docker-prune",
		"nav:back",
		"main:status",
		"docker:stats:web-1",
		"container:web-1:stop",
		"terminal:system",
		"terminal:exit",
		"cmd:disk-usage",
	}
	for _, raw := range cases {
		a, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, Encode(a))
	}
}
