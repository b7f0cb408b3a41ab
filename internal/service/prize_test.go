package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrize_ThreeWinsAwardedOnce(t *testing.T) {
	env := newTestEnv(t)
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	first := env.play(t, x, y)
	assert.False(t, first.Prize.Eligible)
	second := env.play(t, x, y)
	assert.False(t, second.Prize.Eligible)
	assert.Equal(t, 2, second.Prize.Wins)

	third := env.play(t, x, y)
	require.NotNil(t, third.Prize)
	assert.True(t, third.Prize.Eligible)
	assert.Equal(t, domain.PrizeThreeWins, third.Prize.Category)
	assert.Equal(t, 3, third.Prize.Wins)
	assert.Equal(t, 0, third.Prize.Losses)

	fourth := env.play(t, x, y)
	assert.False(t, fourth.Prize.Eligible)
	assert.Equal(t, 4, fourth.Prize.Wins)

	prizes, err := env.prizes.ListByPlayer(context.Background(), x.ID)
	require.NoError(t, err)
	require.Len(t, prizes, 1)
	assert.Equal(t, week0303, prizes[0].WeekStart)
	assert.False(t, prizes[0].Claimed)
	assert.Equal(t, 1, countOf(env.outboxTypes(t), domain.EventPrizeAwarded))
}

func TestPrize_EvaluateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	for i := 0; i < 3; i++ {
		m, err := env.matches.Create(ctx, x.ID, y.ID)
		require.NoError(t, err)
		// Complete without the report path so Evaluate makes the first award.
		require.NoError(t, env.store.WithTx(ctx, func(tx repository.Repos) error {
			require.NoError(t, m.Complete(x.ID, nil, env.clock.Now()))
			return tx.Matches().UpdateStatus(ctx, m)
		}))
	}

	first, err := env.prizes.Evaluate(ctx, x.ID)
	require.NoError(t, err)
	assert.True(t, first.Eligible)
	assert.Equal(t, domain.PrizeThreeWins, first.Category)

	second, err := env.prizes.Evaluate(ctx, x.ID)
	require.NoError(t, err)
	assert.False(t, second.Eligible)
	assert.Empty(t, second.Category)
	assert.Equal(t, first.Wins, second.Wins)
	assert.Equal(t, first.Losses, second.Losses)
}

func TestPrize_ThreeLossesForWinner(t *testing.T) {
	env := newTestEnv(t)
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	for i := 0; i < 3; i++ {
		env.play(t, y, x)
	}

	// X is evaluated as a winner with one win and three losses.
	res := env.play(t, x, y)
	require.NotNil(t, res.Prize)
	assert.True(t, res.Prize.Eligible)
	assert.Equal(t, domain.PrizeThreeLosses, res.Prize.Category)
	assert.Equal(t, 1, res.Prize.Wins)
	assert.Equal(t, 3, res.Prize.Losses)
}

func TestPrize_WinsTakePrecedence(t *testing.T) {
	env := newTestEnv(t)
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	for i := 0; i < 3; i++ {
		env.play(t, y, x)
	}
	env.play(t, x, y) // three_losses for X
	env.play(t, x, y)
	res := env.play(t, x, y)

	assert.True(t, res.Prize.Eligible)
	assert.Equal(t, domain.PrizeThreeWins, res.Prize.Category)

	prizes, err := env.prizes.ListByPlayer(context.Background(), x.ID)
	require.NoError(t, err)
	assert.Len(t, prizes, 2)
}

func TestPrize_ReconcileIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	for i := 0; i < 3; i++ {
		env.play(t, x, y)
	}

	res, err := env.prizes.Reconcile(ctx, week0303)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 0, res.Awarded)
	assert.Equal(t, week0303, res.WeekStart)

	empty, err := env.prizes.Reconcile(ctx, week0303.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Zero(t, empty.Evaluated)
}

func TestPrize_UnknownPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.prizes.Evaluate(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrCodePlayerNotFound))

	_, err = env.prizes.ListByPlayer(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrKindNotFound))
}

// A prize check that fails late Saturday is repaired after the week rolls
// over, against the week the match was created in.
func TestPrize_ReconcilePendingRepairsPreviousWeek(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	env := newTestEnvWithStore(t, store)
	ctx := context.Background()
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	env.clock.Set(time.Date(2024, 3, 9, 23, 50, 0, 0, time.UTC))
	env.play(t, x, y)
	env.play(t, x, y)
	m, err := env.matches.Create(ctx, x.ID, y.ID)
	require.NoError(t, err)

	store.setFail(true)
	_, err = env.matches.Report(ctx, m.ID, x.ID, nil)
	var evalErr *PrizeEvaluationError
	require.True(t, errors.As(err, &evalErr))
	store.setFail(false)

	env.clock.Set(time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC))
	current, err := env.prizes.Reconcile(ctx, env.prizes.CurrentWeek())
	require.NoError(t, err)
	assert.Zero(t, current.Evaluated, "the new week has no matches")

	res, err := env.prizes.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 1, res.Awarded)

	prizes, err := env.prizes.ListByPlayer(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, prizes, 1)
	assert.Equal(t, domain.PrizeThreeWins, prizes[0].PrizeType)
	assert.Equal(t, week0303, prizes[0].WeekStart)

	again, err := env.prizes.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Evaluated)
}

func TestPrize_ReconcilePendingKeepsFailedMatches(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	env := newTestEnvWithStore(t, store)
	ctx := context.Background()
	x := env.register(t, "X", "tempe")
	y := env.register(t, "Y", "tempe")

	store.setFail(true)
	m, err := env.matches.Create(ctx, x.ID, y.ID)
	require.NoError(t, err)
	_, err = env.matches.Report(ctx, m.ID, x.ID, nil)
	require.Error(t, err)

	res, err := env.prizes.ReconcilePending(ctx)
	assert.ErrorIs(t, err, errStorageDown)
	assert.Equal(t, 1, res.Failed)

	store.setFail(false)
	res, err = env.prizes.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Zero(t, res.Awarded)
}
