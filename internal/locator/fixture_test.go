package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdoc/internal/source"
)

// The fixture is a header-guarded C file: functions behind an
// extern "C" wrapper, a continued macro, aggregate definitions,
// prototypes, and a brace inside a string initializer.
func TestLocateQueueFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "queue.c"))
	require.NoError(t, err)
	src := source.New("queue.c", string(data))

	res := Locate(src)
	require.Empty(t, res.Skipped)
	require.Len(t, res.Spans, 3)

	var names []string
	for _, sp := range res.Spans {
		names = append(names, FuncName(src.Text(), sp))
		assert.Equal(t, 1, sp.DepthAtEntry, "functions sit inside the extern \"C\" block")
		assert.Equal(t, byte('{'), src.Text()[sp.BodyStart])
		assert.Equal(t, byte('}'), src.Text()[sp.BodyEnd-1])
	}
	assert.Equal(t, []string{"queue_init", "queue_push", "queue_banner"}, names)

	for i := 1; i < len(res.Spans); i++ {
		assert.GreaterOrEqual(t, res.Spans[i].SignatureStart, res.Spans[i-1].BodyEnd,
			"spans must be disjoint and ordered")
	}
}
