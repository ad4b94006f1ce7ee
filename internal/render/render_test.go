package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rath/sonica/internal/audio"
	"github.com/rath/sonica/internal/template"
)

func TestPlanSharesSingle(t *testing.T) {
	shares, err := planShares("frequency_bars", 300)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, 0, shares[0].from)
	assert.Equal(t, 300, shares[0].to)
	assert.Equal(t, "frequency_bars", shares[0].tpl.Name)
}

func TestPlanSharesUnknown(t *testing.T) {
	_, err := planShares("nope", 300)
	var unknownErr *template.UnknownTemplateError
	require.ErrorAs(t, err, &unknownErr)
}

func TestPlanSharesAll(t *testing.T) {
	shares, err := planShares("all", 601)
	require.NoError(t, err)
	require.Len(t, shares, len(template.All()))

	// Shares tile the frame range exactly, in registration order, with
	// sizes differing by at most one frame.
	next := 0
	total := 0
	for i, sh := range shares {
		assert.Equal(t, next, sh.from, "share %d", i)
		assert.Equal(t, template.All()[i].Name, sh.tpl.Name)
		size := sh.to - sh.from
		assert.InDelta(t, 601.0/6.0, float64(size), 1.0)
		next = sh.to
		total += size
	}
	assert.Equal(t, 601, total)
}

func TestPlanSharesAllTinyStream(t *testing.T) {
	// Fewer frames than templates: empty shares are dropped, coverage
	// stays exact.
	shares, err := planShares("all", 4)
	require.NoError(t, err)

	total := 0
	for _, sh := range shares {
		assert.Less(t, sh.from, sh.to)
		total += sh.to - sh.from
	}
	assert.Equal(t, 4, total)
}

func TestHopForFrame(t *testing.T) {
	result := &audio.Result{
		SampleRate: 44100,
		Hops:       make([]audio.FrameFeatures, 10),
	}
	for i := range result.Hops {
		result.Hops[i].RMS = float64(i)
	}

	// Frame 0 → hop 0.
	assert.Equal(t, 0.0, hopForFrame(result, 0, 30).RMS)

	// One second in at 30 fps: hop = 44100/1024 ≈ 43, clamped to the
	// last hop.
	assert.Equal(t, 9.0, hopForFrame(result, 30, 30).RMS)

	// Frame 8 (≈0.27 s): hop ≈ 11.5 → clamped to 9.
	assert.Equal(t, 9.0, hopForFrame(result, 8, 30).RMS)

	// Within range.
	assert.Equal(t, 4.0, hopForFrame(result, 3, 30).RMS)
}
