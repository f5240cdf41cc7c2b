package forward

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdash/fleetdash/internal/errors"
)

// testBase is above the production range so parallel test runs don't fight
// over the same ports.
const testBase = 21500

func TestReserveAny_SequentialFromBase(t *testing.T) {
	a := NewAllocatorRange(testBase, testBase+50)

	first, err := a.ReserveAny()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, testBase)

	second, err := a.ReserveAny()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, a.Reserved())
}

func TestReserveAny_ConcurrentDistinct(t *testing.T) {
	const n = 8
	a := NewAllocatorRange(testBase+100, testBase+200)

	var (
		mu    sync.Mutex
		ports = make(map[int]bool)
		wg    sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.ReserveAny()
			if err != nil {
				t.Errorf("ReserveAny: %v", err)
				return
			}
			mu.Lock()
			ports[p] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ports, n, "every caller must get a distinct port")
	for p := range ports {
		assert.GreaterOrEqual(t, p, testBase+100)
	}
}

func TestReserve_ExplicitConflict(t *testing.T) {
	a := NewAllocatorRange(testBase+300, testBase+350)

	p, err := a.Reserve(testBase + 310)
	require.NoError(t, err)
	require.Equal(t, testBase+310, p)

	_, err = a.Reserve(testBase + 310)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPort))
	assert.Equal(t, 1, a.Reserved(), "failed reservation must not change state")
}

func TestReserve_InvalidPort(t *testing.T) {
	a := NewAllocatorRange(testBase+400, testBase+410)

	for _, port := range []int{0, -1, 65536} {
		_, err := a.Reserve(port)
		require.Error(t, err, "port %d", port)
		assert.True(t, errors.IsCode(err, errors.ErrPort))
	}
	assert.Equal(t, 0, a.Reserved())
}

func TestReserve_SkipsBoundPort(t *testing.T) {
	a := NewAllocatorRange(testBase+500, testBase+510)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", testBase+500))
	require.NoError(t, err)
	defer ln.Close()

	// Explicit reservation of a port something else holds must fail.
	_, err = a.Reserve(testBase + 500)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPort))

	// Auto assignment steps past it.
	p, err := a.ReserveAny()
	require.NoError(t, err)
	assert.NotEqual(t, testBase+500, p)
}

func TestRelease_MakesPortReusable(t *testing.T) {
	a := NewAllocatorRange(testBase+600, testBase+610)

	p, err := a.Reserve(testBase + 605)
	require.NoError(t, err)

	a.Release(p)
	assert.Equal(t, 0, a.Reserved())

	again, err := a.Reserve(testBase + 605)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestReserveAny_Exhausted(t *testing.T) {
	a := NewAllocatorRange(testBase+700, testBase+702)

	for i := 0; i < 3; i++ {
		_, err := a.ReserveAny()
		require.NoError(t, err)
	}

	_, err := a.ReserveAny()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPort))
}
