package control

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_RunsCommandsUntilQuit(t *testing.T) {
	eng := &fakeController{count: 3}
	d, _ := runDispatcher(t, eng)

	var out bytes.Buffer
	quit := false
	c := NewConsole(d, eng, &out, func() { quit = true })

	in := strings.NewReader("s\n\nstate\nfly\np\np\nr\na\nq\nstart\n")
	require.NoError(t, c.Run(context.Background(), in))

	assert.True(t, quit)
	assert.Equal(t, []string{"start", "pause", "pause", "resume", "analyze"}, eng.history(), "lines after quit are not run")

	text := out.String()
	assert.True(t, strings.HasPrefix(text, consoleHelp))
	assert.Contains(t, text, "start ok (state=CAPTURING)")
	assert.Contains(t, text, "state=CAPTURING buffered=3/120 chunk=42s")
	assert.Contains(t, text, `unknown command: "fly" (type help)`)
	assert.Contains(t, text, "pause ok (state=WAITING)")
	assert.Contains(t, text, "pause ignored (state=WAITING)")
	assert.Contains(t, text, "analysis t-1 wrote 3 actions (state=WAITING)")
}

func TestConsole_EOFStops(t *testing.T) {
	eng := &fakeController{}
	d, _ := runDispatcher(t, eng)

	var out bytes.Buffer
	c := NewConsole(d, eng, &out, nil)
	require.NoError(t, c.Run(context.Background(), strings.NewReader("start\n")))
	assert.Equal(t, []string{"start"}, eng.history())
}
