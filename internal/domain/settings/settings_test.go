package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/docstore/memstore"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store := docstore.New(memstore.New())
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store)
}

func TestAddAndRemoveOptions(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.AddOption(ctx, "skills", "Teaching"))
	require.NoError(t, svc.AddOption(ctx, "skills", "Finance"))
	assert.ErrorIs(t, svc.AddOption(ctx, "skills", "Teaching"), ErrDuplicateOption)
	assert.ErrorIs(t, svc.AddOption(ctx, "skills", "  "), ErrBlankOption)
	assert.ErrorIs(t, svc.AddOption(ctx, "salaries", "x"), ErrUnknownCategory)

	options, err := svc.Options(ctx, "skills")
	require.NoError(t, err)
	assert.Equal(t, []string{"Teaching", "Finance"}, options)

	require.NoError(t, svc.RemoveOption(ctx, "skills", "Teaching"))
	assert.ErrorIs(t, svc.RemoveOption(ctx, "skills", "Teaching"), ErrOptionNotFound)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance"}, all["skills"])
	assert.Equal(t, []string{}, all["groups"])
	assert.Len(t, all, len(Categories))
}

func TestValidateOption(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	assert.NoError(t, svc.ValidateOption(ctx, "groups", "anything"), "empty category accepts any value")
	require.NoError(t, svc.AddOption(ctx, "groups", "G1"))
	assert.NoError(t, svc.ValidateOption(ctx, "groups", "G1"))
	assert.NoError(t, svc.ValidateOption(ctx, "groups", ""))
	assert.ErrorIs(t, svc.ValidateOption(ctx, "groups", "G2"), ErrInvalidOption)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	require.NoError(t, svc.AddOption(ctx, "positions", "Lecturer"))

	seed, err := ParseSeed(strings.NewReader(`
categories:
  positions: [Dean, Lecturer]
  schedules: [Morning, Afternoon, ""]
`))
	require.NoError(t, err)

	added, err := svc.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	again, err := svc.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, again)

	positions, err := svc.Options(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lecturer", "Dean"}, positions)

	_, err = ParseSeed(strings.NewReader("categories:\n  salaries: [x]\n"))
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
