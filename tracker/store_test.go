package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/probmesh/core"
)

func TestRegisterAndGet(t *testing.T) {
	s := New()

	ec := s.Create("spawn")
	require.NoError(t, s.Register(ec))

	got, ok := s.Get(ec.ID)
	require.True(t, ok)
	assert.Equal(t, ec.ID, got.ID)
	assert.True(t, s.Exists(ec.ID))
}

func TestRegisterDuplicateID(t *testing.T) {
	s := New()

	ec := s.Create("spawn")
	require.NoError(t, s.Register(ec))

	err := s.Register(ec.Clone())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateID)
}

func TestRegisterDanglingParentLeavesStoreUnchanged(t *testing.T) {
	s := New()

	child := s.CreateChild("no-such-parent", "orphan")
	err := s.Register(child)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDanglingParent)

	// The failed registration must not leave any partial state behind.
	assert.False(t, s.Exists(child.ID))
	assert.Equal(t, 0, s.Stats().ActiveCount)
}

func TestRegisterSelfParentRejected(t *testing.T) {
	s := New()

	ec := s.Create("loop")
	ec.ParentID = ec.ID

	err := s.Register(ec)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCycle)
}

func TestEffectiveMetadataWalksAncestry(t *testing.T) {
	s := New()

	zone := s.Create("zone")
	zone.Set("Level", core.Float(12))
	zone.Set("Biome", core.String("forest"))
	require.NoError(t, s.Register(zone))

	area := s.CreateChild(zone.ID, "area")
	area.Set("Level", core.Float(15)) // overrides the zone
	require.NoError(t, s.Register(area))

	spawn := s.CreateChild(area.ID, "spawn")
	require.NoError(t, s.Register(spawn))

	// Nearest definition wins.
	level, err := s.EffectiveFloat(spawn.ID, "Level")
	require.NoError(t, err)
	assert.Equal(t, 15.0, level)

	// Inherited across two levels.
	biome, err := s.EffectiveString(spawn.ID, "Biome")
	require.NoError(t, err)
	assert.Equal(t, "forest", biome)

	_, ok := s.EffectiveMetadata(spawn.ID, "Missing")
	assert.False(t, ok)
}

// The effective view of a key must match a manual walk of the ancestry
// chain, whatever the chain depth.
func TestEffectiveMetadataMatchesManualWalk(t *testing.T) {
	s := New()

	var ids []string
	parentID := ""
	for i := 0; i < 6; i++ {
		var ec *core.Context
		if parentID == "" {
			ec = s.Create("root")
		} else {
			ec = s.CreateChild(parentID, "level")
		}
		if i%2 == 0 {
			ec.Set("Depth", core.Int(int64(i)))
		}
		require.NoError(t, s.Register(ec))
		ids = append(ids, ec.ID)
		parentID = ec.ID
	}

	leaf := ids[len(ids)-1]

	manual := func(key string) (core.Value, bool) {
		id := leaf
		for id != "" {
			ec, ok := s.Get(id)
			if !ok {
				return nil, false
			}
			if v, ok := ec.Get(key); ok {
				return v, true
			}
			id = ec.ParentID
		}
		return nil, false
	}

	for _, key := range []string{"Depth", "Missing"} {
		want, wantOK := manual(key)
		got, gotOK := s.EffectiveMetadata(leaf, key)
		assert.Equal(t, wantOK, gotOK, key)
		assert.Equal(t, want, got, key)
	}
}

func TestAncestorsAndRoot(t *testing.T) {
	s := New()

	root := s.Create("root")
	require.NoError(t, s.Register(root))
	mid := s.CreateChild(root.ID, "mid")
	require.NoError(t, s.Register(mid))
	leaf := s.CreateChild(mid.ID, "leaf")
	require.NoError(t, s.Register(leaf))

	chain, err := s.Ancestors(leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mid.ID, root.ID}, chain)

	rootID, err := s.RootOf(leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, rootID)

	assert.True(t, s.IsAncestorOf(root.ID, leaf.ID))
	assert.False(t, s.IsAncestorOf(leaf.ID, root.ID))

	_, err = s.Ancestors("unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRemoveOrphansChildren(t *testing.T) {
	s := New()

	parent := s.Create("parent")
	parent.Set("Level", core.Float(10))
	require.NoError(t, s.Register(parent))
	child := s.CreateChild(parent.ID, "child")
	require.NoError(t, s.Register(child))

	require.NoError(t, s.Remove(parent.ID))

	// The child survives with a dangling parent; inherited reads stop at it.
	assert.True(t, s.Exists(child.ID))
	_, ok := s.EffectiveMetadata(child.ID, "Level")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Remove(parent.ID), core.ErrNotFound)
}

func TestConcurrentRegisterAndRead(t *testing.T) {
	s := New()

	root := s.Create("root")
	root.Set("Level", core.Float(1))
	require.NoError(t, s.Register(root))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ec := s.CreateChild(root.ID, fmt.Sprintf("worker-%d", n))
			if err := s.Register(ec); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			if _, err := s.EffectiveFloat(ec.ID, "Level"); err != nil {
				t.Errorf("effective read: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 17, s.Stats().ActiveCount)
}

func TestStats(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Stats().ActiveCount)

	ec := s.Create("spawn")
	ec.Set("Zone", core.String("forest"))
	require.NoError(t, s.Register(ec))

	st := s.Stats()
	assert.Equal(t, 1, st.ActiveCount)
	assert.Greater(t, st.EstimatedBytes, int64(0))
}
