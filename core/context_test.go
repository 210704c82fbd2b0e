package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	ec := NewContext("spawn roll")

	assert.NotEmpty(t, ec.ID)
	assert.Empty(t, ec.ParentID)
	assert.Equal(t, "spawn roll", ec.Reason)
	assert.NotNil(t, ec.Metadata)
	assert.False(t, ec.CreatedAt.IsZero())
}

func TestNewChildContext(t *testing.T) {
	parent := NewContext("zone")
	child := NewChildContext(parent.ID, "spawn")

	assert.Equal(t, parent.ID, child.ParentID)
	assert.NotEqual(t, parent.ID, child.ID)
}

func TestContextSetGet(t *testing.T) {
	ec := NewContext("test")
	ec.Set("Level", Float(12))

	v, ok := ec.Get("Level")
	require.True(t, ok)
	assert.Equal(t, Float(12), v)

	_, ok = ec.Get("Missing")
	assert.False(t, ok)
}

func TestContextTypedReaders(t *testing.T) {
	ec := NewContext("test")
	ec.Set("Level", Float(12))
	ec.Set("Count", Int(3))
	ec.Set("Elite", Bool(true))
	ec.Set("Zone", String("forest"))

	level, err := ec.Float("Level")
	require.NoError(t, err)
	assert.Equal(t, 12.0, level)

	count, err := ec.Int("Count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	elite, err := ec.Bool("Elite")
	require.NoError(t, err)
	assert.True(t, elite)

	zone, err := ec.String("Zone")
	require.NoError(t, err)
	assert.Equal(t, "forest", zone)

	_, err = ec.Float("Missing")
	assert.ErrorIs(t, err, ErrKeyMissing)

	_, err = ec.Int("Zone")
	assert.ErrorIs(t, err, ErrValueKind)
}

func TestContextClone(t *testing.T) {
	ec := NewContext("original")
	ec.Set("Level", Float(12))

	clone := ec.Clone()
	clone.Set("Level", Float(99))
	clone.Set("Extra", Bool(true))

	// The original is untouched by clone mutation.
	v, _ := ec.Get("Level")
	assert.Equal(t, Float(12), v)
	_, ok := ec.Get("Extra")
	assert.False(t, ok)

	assert.Equal(t, ec.ID, clone.ID)
	assert.Equal(t, ec.CreatedAt, clone.CreatedAt)
}

func TestFailureError(t *testing.T) {
	f := NewFailure(FailureInvalidContext, "missing key %q", "Level")
	f.Evaluator = "LevelScale"

	assert.Contains(t, f.Error(), "invalid_context")
	assert.Contains(t, f.Error(), `missing key "Level"`)
	assert.Contains(t, f.Error(), "LevelScale")
}

func TestFailErrUnwrap(t *testing.T) {
	cause := ErrNotFoundKey("Level")
	res := FailErr(FailureInvalidContext, cause)

	require.False(t, res.Success)
	assert.ErrorIs(t, res.Failure, ErrKeyMissing)
}

func TestOperationResultConstructors(t *testing.T) {
	ok := OK()
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Failure)

	fail := Fail(FailureTimeout, "deadline elapsed")
	assert.False(t, fail.Success)
	require.NotNil(t, fail.Failure)
	assert.Equal(t, FailureTimeout, fail.Failure.Kind)
}
