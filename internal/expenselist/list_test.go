package expenselist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaspese/internal/core"
)

func rec(id int64, date string) core.ExpenseRecord {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.ExpenseRecord{ID: id, Date: d, Provenance: core.Committed}
}

func ids(list []core.ExpenseRecord) []int64 {
	out := make([]int64, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func TestInsert_Examples(t *testing.T) {
	base := []core.ExpenseRecord{rec(1, "2025-09-10"), rec(2, "2025-09-05")}

	assert.Equal(t, []int64{3, 1, 2}, ids(Insert(base, rec(3, "2025-09-15"))))
	assert.Equal(t, []int64{1, 2, 4}, ids(Insert(base, rec(4, "2025-09-01"))))
	assert.Equal(t, []int64{1, 5, 2}, ids(Insert(base, rec(5, "2025-09-07"))))
}

func TestInsert_EqualDatePrecedesExisting(t *testing.T) {
	base := []core.ExpenseRecord{rec(1, "2025-09-10"), rec(2, "2025-09-05")}

	assert.Equal(t, []int64{1, 6, 2}, ids(Insert(base, rec(6, "2025-09-05"))))
	assert.Equal(t, []int64{7, 1, 2}, ids(Insert(base, rec(7, "2025-09-10"))))
}

func TestInsert_EmptyList(t *testing.T) {
	assert.Equal(t, []int64{9}, ids(Insert(nil, rec(9, "2025-01-01"))))
}

func TestInsert_DoesNotMutateInput(t *testing.T) {
	base := make([]core.ExpenseRecord, 2, 8) // spare capacity must not be written into
	base[0], base[1] = rec(1, "2025-09-10"), rec(2, "2025-09-05")
	before := append([]core.ExpenseRecord(nil), base...)

	out := Insert(base, rec(3, "2025-09-07"))

	assert.Equal(t, before, base)
	assert.Equal(t, core.ExpenseRecord{}, base[:3][2])
	assert.Len(t, out, 3)
	out[0].Description = "changed"
	assert.Empty(t, base[0].Description)
}

func TestInsert_PropertySortedAndFirstPosition(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		var list []core.ExpenseRecord
		n := r.Intn(12)
		for i := 0; i < n; i++ {
			list = Insert(list, core.ExpenseRecord{ID: int64(i + 1), Date: core.NewDate(2025, 9, 1+r.Intn(20))})
		}
		e := core.ExpenseRecord{ID: 1000, Date: core.NewDate(2025, 9, 1+r.Intn(20))}

		out := Insert(list, e)

		require.Len(t, out, len(list)+1)
		for i := 1; i < len(out); i++ {
			require.False(t, out[i].Date.After(out[i-1].Date.Time), "not sorted descending at %d", i)
		}
		at := IndexOf(out, e.ID)
		want := len(list)
		for i, x := range list {
			if !x.Date.After(e.Date.Time) {
				want = i
				break
			}
		}
		require.Equal(t, want, at)
	}
}

func TestRemove(t *testing.T) {
	base := []core.ExpenseRecord{rec(1, "2025-09-10"), rec(-1, "2025-09-07"), rec(2, "2025-09-05")}

	out := Remove(base, -1)

	assert.Equal(t, []int64{1, 2}, ids(out))
	assert.Equal(t, []int64{1, -1, 2}, ids(base))
	assert.Equal(t, []int64{1, -1, 2}, ids(Remove(base, 99)))
}

func TestCommit(t *testing.T) {
	base := []core.ExpenseRecord{rec(1, "2025-09-10"), rec(-1, "2025-09-07"), rec(2, "2025-09-05")}

	t.Run("same day replaces in place", func(t *testing.T) {
		out := Commit(base, -1, rec(10, "2025-09-07"))
		assert.Equal(t, []int64{1, 10, 2}, ids(out))
		assert.Equal(t, []int64{1, -1, 2}, ids(base))
	})

	t.Run("different day repositions", func(t *testing.T) {
		out := Commit(base, -1, rec(11, "2025-09-01"))
		assert.Equal(t, []int64{1, 2, 11}, ids(out))
	})

	t.Run("missing temporary inserts", func(t *testing.T) {
		out := Commit(Remove(base, -1), -1, rec(12, "2025-09-12"))
		assert.Equal(t, []int64{12, 1, 2}, ids(out))
	})

	t.Run("server id already present is not duplicated", func(t *testing.T) {
		out := Commit(append(base, rec(13, "2025-09-01")), -1, rec(13, "2025-09-01"))
		assert.Equal(t, []int64{1, 2, 13}, ids(out))
	})
}

func TestStore_UpdateComposes(t *testing.T) {
	s := NewStore([]core.ExpenseRecord{rec(2, "2025-09-05"), rec(1, "2025-09-10")})
	require.Equal(t, []int64{1, 2}, ids(s.Snapshot()))

	var seen [][]int64
	s.Observe(func(list []core.ExpenseRecord) { seen = append(seen, ids(list)) })

	s.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord { return Insert(prev, rec(-1, "2025-09-07")) })
	s.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord { return Insert(prev, rec(3, "2025-09-20")) })
	s.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord { return Commit(prev, -1, rec(4, "2025-09-07")) })

	assert.Equal(t, []int64{3, 1, 4, 2}, ids(s.Snapshot()))
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, [][]int64{{1, -1, 2}, {3, 1, -1, 2}, {3, 1, 4, 2}}, seen)

	snap := s.Snapshot()
	snap[0].ID = 99
	assert.Equal(t, []int64{3, 1, 4, 2}, ids(s.Snapshot()))
}

func TestStore_ObserversCannotMutateStore(t *testing.T) {
	s := NewStore([]core.ExpenseRecord{rec(1, "2025-09-10")})

	var first, second []core.ExpenseRecord
	s.Observe(func(list []core.ExpenseRecord) {
		first = list
		list[0].ID = 77
	})
	s.Observe(func(list []core.ExpenseRecord) { second = list })

	s.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord { return Insert(prev, rec(-2, "2025-09-12")) })

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, []int64{-2, 1}, ids(s.Snapshot()), "observers cannot mutate the store")
	assert.Equal(t, ids(first), ids(second))
}
