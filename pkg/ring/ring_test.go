package ring

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// кольцо из N серверов с заданным числом реплик
func makeRing(n, replicas int) *HashRing {
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, Point{Identity: fmt.Sprintf("10.0.0.%d:6379", i+1), Index: i})
	}
	return New(points, replicas)
}

func TestPosition_MatchesHexPrefix(t *testing.T) {
	for _, s := range []string{"", "foo", "127.0.0.1:6379-0", "10.0.0.3:6379-128", "ключ"} {
		sum := md5.Sum([]byte(s))
		want, err := strconv.ParseUint(hex.EncodeToString(sum[:])[:7], 16, 32)
		require.NoError(t, err)
		assert.Equal(t, uint32(want), Position(s), "position of %q", s)
		assert.LessOrEqual(t, Position(s), uint32(MaxPosition))
	}
}

func TestNew_ReplicaPointsInclusive(t *testing.T) {
	r := makeRing(3, 2)
	// (R+1) точек на сервер, коллизии на 28 битах здесь не встречаются
	assert.Equal(t, 9, r.Len())
	assert.Equal(t, 2, r.Replicas())

	single := makeRing(1, 0)
	assert.Equal(t, 1, single.Len())
}

func TestNew_NegativeReplicasUseDefault(t *testing.T) {
	r := makeRing(1, -1)
	assert.Equal(t, DefaultReplicas, r.Replicas())
	assert.Equal(t, DefaultReplicas+1, r.Len())
}

func TestNew_SortedPositions(t *testing.T) {
	pos := makeRing(5, 128).Positions()
	for i := 1; i < len(pos); i++ {
		require.Less(t, pos[i-1], pos[i])
	}
}

func TestNew_CollisionLastWriteWins(t *testing.T) {
	// один и тот же identity под двумя индексами: все позиции совпадают
	r := New([]Point{{Identity: "dup:1", Index: 0}, {Identity: "dup:1", Index: 1}}, 4)
	assert.Equal(t, 5, r.Len())
	for i := 0; i < 100; i++ {
		idx, err := r.Locate(fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	}
}

func TestRing_Deterministic(t *testing.T) {
	a := makeRing(3, 128)
	b := makeRing(3, 128)
	require.Equal(t, a.Positions(), b.Positions())
	for i := 0; i < 10_000; i++ {
		k := fmt.Sprintf("id-%d", i)
		ia, err := a.Locate(k)
		require.NoError(t, err)
		ib, err := b.Locate(k)
		require.NoError(t, err)
		require.Equal(t, ia, ib, "key %s", k)
	}
}

func TestRing_LocateReturnsLiveIndex(t *testing.T) {
	r := makeRing(4, 16)
	for i := 0; i < 5000; i++ {
		idx, err := r.Locate(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 4)
	}
}

func TestOwner_NearestSuccessor(t *testing.T) {
	r := makeRing(3, 8)
	pos := r.Positions()

	for i := 0; i < len(pos)-1; i++ {
		p1, p2 := pos[i], pos[i+1]

		own1, err := r.Owner(p1)
		require.NoError(t, err)
		assert.Equal(t, r.owners[i], own1, "exact hit at %d", p1)

		if p2-p1 > 1 {
			between, err := r.Owner(p1 + (p2-p1)/2 + 1)
			require.NoError(t, err)
			assert.Equal(t, r.owners[i+1], between, "needle between %d and %d", p1, p2)
		}
	}
}

func TestOwner_Bounds(t *testing.T) {
	r := makeRing(3, 8)
	pos := r.Positions()

	first, err := r.Owner(0)
	require.NoError(t, err)
	assert.Equal(t, r.owners[0], first)

	// выше последней позиции: остаёмся на последней, без перехода на начало
	last := pos[len(pos)-1]
	if last < MaxPosition {
		over, err := r.Owner(last + 1)
		require.NoError(t, err)
		assert.Equal(t, r.owners[len(pos)-1], over)
	}
	top, err := r.Owner(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, r.owners[len(pos)-1], top)
}

func TestOwner_EmptyRing(t *testing.T) {
	r := New(nil, 128)
	_, err := r.Locate("foo")
	require.ErrorIs(t, err, ErrEmptyRing)
}

// равномерность распределения ~ 1/N с допуском
func TestRing_DistributionUniformity(t *testing.T) {
	const n, total = 3, 60_000
	r := makeRing(n, 128)

	counts := map[int]int{}
	for i := 0; i < total; i++ {
		idx, err := r.Locate(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		counts[idx]++
	}
	require.Len(t, counts, n)

	ideal := float64(total) / n
	for idx, c := range counts {
		diff := math.Abs(float64(c) - ideal)
		assert.LessOrEqual(t, diff, 0.25*ideal, "server %d: count=%d ideal=%.0f", idx, c, ideal)
	}
}

// удаление одного сервера из N двигает примерно 1/N ключей
func TestRing_MinimalMovementOnRemove(t *testing.T) {
	const n, total = 4, 100_000

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("10.0.1.%d:6379", i+1)
	}
	full := make([]Point, n)
	for i, id := range ids {
		full[i] = Point{Identity: id, Index: i}
	}
	before := New(full, 128)

	// убираем последний сервер, остальные сохраняют свои индексы
	after := New(full[:n-1], 128)

	moved := 0
	for i := 0; i < total; i++ {
		k := fmt.Sprintf("k-%d", i)
		a, err := before.Locate(k)
		require.NoError(t, err)
		b, err := after.Locate(k)
		require.NoError(t, err)
		if a != b {
			moved++
			require.Equal(t, n-1, a, "key %s moved away from a surviving server", k)
		}
	}
	frac := float64(moved) / total
	assert.InDelta(t, 1.0/n, frac, 0.08, "moved fraction %.3f", frac)
}
