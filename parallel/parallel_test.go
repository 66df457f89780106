package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 5, 16, 17, 100, 1000} {
		counts := make([]int32, n)

		Run(n, func(i int) {
			atomic.AddInt32(&counts[i], 1)
		}).Wait()

		for i, c := range counts {
			require.Equalf(t, int32(1), c, "index %d", i)
		}
	}
}

func TestRunWaitBlocksUntilDone(t *testing.T) {
	var done int32

	g := Run(500, func(i int) {
		atomic.AddInt32(&done, 1)
	})
	g.Wait()

	require.Equal(t, int32(500), atomic.LoadInt32(&done))
}

func TestRunNegativeCount(t *testing.T) {
	called := false
	Run(-1, func(i int) { called = true }).Wait()
	require.False(t, called)
}
