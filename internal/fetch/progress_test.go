package fetch

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_FractionAndETA(t *testing.T) {
	p := snapshot(Progress{Total: 100}, 25, 10*time.Second)
	assert.Equal(t, 0.25, p.Fraction)
	assert.Equal(t, 30*time.Second, p.ETA)

	unknown := snapshot(Progress{Total: -1}, 25, time.Second)
	assert.Equal(t, 0.0, unknown.Fraction)
	assert.Equal(t, time.Duration(-1), unknown.ETA)
}

func TestProgressReader_ThrottlesAndAlwaysReportsFinal(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	var got []Progress
	r := newProgressReader(iotestOneByte(strings.NewReader("abcdef")), Progress{Name: "x", Total: 6}, time.Second, clock, func(p Progress) {
		got = append(got, p)
	})

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(b))

	// 时钟不前进：只有起始与最终两次上报。
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Done)
	assert.Equal(t, int64(6), got[1].Done)
	assert.Equal(t, 1.0, got[1].Fraction)
}

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func iotestOneByte(r io.Reader) io.Reader { return oneByteReader{r: r} }
