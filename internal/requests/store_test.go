package requests

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

func named(id int64, name string, favorite bool) domain.Request {
	r := domain.NewRequest(id)
	r.Name = name
	r.Favorite = favorite
	return r
}

func ids(reqs []domain.Request) []int64 {
	out := make([]int64, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func TestCreateSelectsNewRequest(t *testing.T) {
	s := NewStore(nil, nil)

	r := s.Create()

	assert.Equal(t, domain.DefaultRequestName, r.Name)
	assert.Equal(t, domain.MethodGet, r.Method)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, r.ID, sel.ID)
	assert.Equal(t, 1, s.Len())
}

func TestCreateIDsAreUnique(t *testing.T) {
	s := NewStore(nil, nil)
	seen := make(map[int64]bool)
	for range 50 {
		r := s.Create()
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestCreateSkipsIDsAlreadyInStore(t *testing.T) {
	s := NewStore([]domain.Request{domain.NewRequest(10)}, nil)
	next := int64(9)
	s.nextID = func() int64 { next++; return next }

	r := s.Create()
	assert.Equal(t, int64(11), r.ID)
}

func TestDeleteClearsSelectionOnlyWhenSelected(t *testing.T) {
	s := NewStore(nil, nil)
	first := s.Create()
	second := s.Create()

	// second is selected; deleting first keeps it.
	require.True(t, s.Delete(first.ID))
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, second.ID, sel.ID)

	require.True(t, s.Delete(second.ID))
	assert.Nil(t, s.SelectedID())
	_, ok = s.Selected()
	assert.False(t, ok)

	assert.False(t, s.Delete(second.ID), "already gone")
}

func TestSelectIsPermissive(t *testing.T) {
	s := NewStore([]domain.Request{domain.NewRequest(1)}, nil)

	s.Select(404)
	require.NotNil(t, s.SelectedID())
	assert.Equal(t, int64(404), *s.SelectedID())

	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Nil(t, s.SelectedID(), "dangling selection is cleared on read")
}

func TestSelectExisting(t *testing.T) {
	s := NewStore([]domain.Request{domain.NewRequest(1)}, nil)

	err := s.SelectExisting(2)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
	assert.Nil(t, s.SelectedID())

	require.NoError(t, s.SelectExisting(1))
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(1), sel.ID)

	s.ClearSelection()
	assert.Nil(t, s.SelectedID())
}

func TestUpdate(t *testing.T) {
	s := NewStore([]domain.Request{domain.NewRequest(1)}, nil)

	ok := s.Update(1,
		domain.SetURL("https://api.example.com"),
		domain.SetMethod(domain.MethodPut),
		domain.SetHeader{Key: "Accept", Value: "text/plain"},
		domain.SetHeader{Key: "Accept", Value: "application/json"},
	)
	require.True(t, ok)

	got, _ := s.Get(1)
	assert.Equal(t, "https://api.example.com", got.URL)
	assert.Equal(t, domain.MethodPut, got.Method)
	assert.Equal(t, "application/json", got.Headers["Accept"])

	assert.False(t, s.Update(2, domain.SetName("nobody")))
	assert.Equal(t, 1, s.Len())
}

func TestReturnedRequestsDoNotAliasStore(t *testing.T) {
	s := NewStore([]domain.Request{domain.NewRequest(1)}, nil)

	got, _ := s.Get(1)
	got.Headers["X-Leak"] = "1"
	got.Name = "changed"

	again, _ := s.Get(1)
	assert.NotContains(t, again.Headers, "X-Leak")
	assert.Equal(t, domain.DefaultRequestName, again.Name)
}

func TestFavoritesAndRecentAreRestartable(t *testing.T) {
	s := NewStore([]domain.Request{
		named(1, "one", true),
		named(2, "two", false),
		named(3, "three", true),
		named(4, "four", true),
	}, nil)

	favs := s.Favorites()
	assert.Equal(t, []int64{1, 3, 4}, ids(slices.Collect(favs)))
	assert.Equal(t, []int64{1, 3, 4}, ids(slices.Collect(favs)), "second pass yields the same")

	recent := s.Recent()
	assert.Equal(t, []int64{1, 2, 3}, ids(slices.Collect(recent)))
	assert.Equal(t, []int64{1, 2, 3}, ids(slices.Collect(recent)))
}

func TestRecentIsInsertionOrderNotRecency(t *testing.T) {
	// The newest request is last and therefore not among Recent.
	s := NewStore([]domain.Request{named(1, "a", false), named(2, "b", false), named(3, "c", false)}, nil)
	newest := s.Create()

	got := ids(slices.Collect(s.Recent()))
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.NotContains(t, got, newest.ID)
}

func TestRecentWithFewRequests(t *testing.T) {
	s := NewStore([]domain.Request{named(1, "a", false)}, nil)
	assert.Equal(t, []int64{1}, ids(slices.Collect(s.Recent())))
	assert.Empty(t, slices.Collect(NewStore(nil, nil).Recent()))
}

func TestFavoritesStopsEarly(t *testing.T) {
	s := NewStore([]domain.Request{named(1, "a", true), named(2, "b", true)}, nil)

	var seen []int64
	for r := range s.Favorites() {
		seen = append(seen, r.ID)
		break
	}
	assert.Equal(t, []int64{1}, seen)
}

func TestDuplicate(t *testing.T) {
	orig := named(1, "List users", true)
	orig.Headers["X-Api-Key"] = "secret"
	s := NewStore([]domain.Request{orig, named(2, "other", false)}, nil)

	dup, ok := s.Duplicate(1)
	require.True(t, ok)

	assert.NotEqual(t, int64(1), dup.ID)
	assert.Equal(t, "List users (copy)", dup.Name)
	assert.Equal(t, "secret", dup.Headers["X-Api-Key"])
	assert.Equal(t, []int64{1, dup.ID, 2}, ids(s.List()))
	assert.Equal(t, dup.ID, *s.SelectedID())

	_, ok = s.Duplicate(99)
	assert.False(t, ok)
}

func TestMove(t *testing.T) {
	s := NewStore([]domain.Request{named(1, "a", false), named(2, "b", false), named(3, "c", false)}, nil)

	require.True(t, s.Move(3, 0))
	assert.Equal(t, []int64{3, 1, 2}, ids(s.List()))

	require.True(t, s.Move(3, 100))
	assert.Equal(t, []int64{1, 2, 3}, ids(s.List()))

	require.True(t, s.Move(2, -5))
	assert.Equal(t, []int64{2, 1, 3}, ids(s.List()))

	assert.False(t, s.Move(42, 0))
}

func TestSearch(t *testing.T) {
	users := named(1, "List users", false)
	users.URL = "https://api.example.com/users"
	orders := named(2, "Create order", false)
	orders.Method = domain.MethodPost
	orders.URL = "https://api.example.com/orders"
	s := NewStore([]domain.Request{users, orders}, nil)

	assert.Equal(t, []int64{1}, ids(s.Search("users")))
	assert.Equal(t, []int64{2}, ids(s.Search("POST")))
	assert.Equal(t, []int64{2}, ids(s.Search("crord")), "fuzzy subsequence")
	assert.Equal(t, []int64{1, 2}, ids(s.Search("  ")))
	assert.Empty(t, s.Search("zzz"))
}

func TestNewStoreDropsDuplicateIDs(t *testing.T) {
	s := NewStore([]domain.Request{named(1, "first", false), named(1, "second", false)}, nil)

	require.Equal(t, 1, s.Len())
	got, _ := s.Get(1)
	assert.Equal(t, "first", got.Name)
}

func TestReplace(t *testing.T) {
	s := NewStore([]domain.Request{named(1, "a", false)}, nil)
	sel := int64(8)

	s.Replace([]domain.Request{named(7, "x", false), named(8, "y", false)}, &sel)

	reqs, selected := s.Snapshot()
	assert.Equal(t, []int64{7, 8}, ids(reqs))
	require.NotNil(t, selected)
	assert.Equal(t, int64(8), *selected)

	sel = 99
	assert.Equal(t, int64(8), *s.SelectedID(), "selection is copied in")
}

func TestOnChange(t *testing.T) {
	s := NewStore(nil, nil)
	calls := 0
	s.SetOnChange(func() {
		calls++
		// The listener may read the store.
		_ = s.Len()
	})

	r := s.Create()
	s.Update(r.ID, domain.SetName("x"))
	s.Update(404, domain.SetName("ignored"))
	s.Select(r.ID)
	s.Delete(r.ID)

	assert.Equal(t, 4, calls)
}

func TestConcurrentMutationsLoseNothing(t *testing.T) {
	s := NewStore(nil, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := s.Create()
			s.Update(r.ID, domain.SetFavorite(true))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
	assert.Len(t, slices.Collect(s.Favorites()), 20)
}
