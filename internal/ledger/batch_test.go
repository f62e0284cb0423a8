package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models/events"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

func TestApplyBatchFeeConcreteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.UpdateBaseline(ctx, UpdateBaselineRequest{AccountID: "stu-1", TotalFees: dec("12000")})
	require.NoError(t, err)
	state := f.state(t, "stu-1")
	assertMoney(t, "12000", state.TotalFees)
	assert.True(t, state.Paid.IsZero())

	payment := f.record(t, "stu-1", "5000", "cash")
	assertMoney(t, "7000", f.state(t, "stu-1").Due)

	res, err := f.ledger.ApplyBatchFee(ctx, models.BatchAssessmentRequest{
		BatchID: "class-10",
		Amount:  dec("500"),
		Note:    "October fee",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-2", "stu-3"}, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.NotEmpty(t, res.RunID)

	state = f.state(t, "stu-1")
	assertMoney(t, "4500", state.Paid)
	assertMoney(t, "7500", state.Due)

	require.NoError(t, f.ledger.ReverseEntry(ctx, payment.ID))
	state = f.state(t, "stu-1")
	assertMoney(t, "-500", state.Paid)
	assertMoney(t, "12500", state.Due)

	st, err := f.ledger.Statement(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, "October fee", st.Entries[0].Note)
	assert.Equal(t, models.KindAssessment, st.Entries[0].Kind())

	assert.Contains(t, f.publisher.topics(), events.TopicBatchAssessed)
}

func TestApplyBatchFeePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// still listed in class-10, but gone from the directory by the time its entry is written
	f.dir.RemoveStudent("stu-2")

	res, err := f.ledger.ApplyBatchFee(ctx, models.BatchAssessmentRequest{
		BatchID: "class-10",
		Amount:  dec("500"),
		Note:    "October fee",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-3"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "stu-2", res.Failed[0].AccountID)
	assert.Equal(t, xerrors.KindNotFound, res.Failed[0].Reason)
	assert.ErrorIs(t, res.Failed[0].Err, xerrors.ErrNotFound)

	for _, id := range []string{"stu-1", "stu-3"} {
		state := f.state(t, id)
		assertMoney(t, "-500", state.Paid)
		assertMoney(t, "500", state.Due)
	}
	_, err = f.store.GetAccount(ctx, "stu-2")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestApplyBatchFeeStoreFailureIsReportedPerMember(t *testing.T) {
	boom := errors.New("write timeout")
	f := newFixture(t, memory.WithAppendFailure(func(accountID string) error {
		if accountID == "stu-1" {
			return boom
		}
		return nil
	}))

	res, err := f.ledger.ApplyBatchFee(context.Background(), models.BatchAssessmentRequest{BatchID: "class-10", Amount: dec("250")})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-2", "stu-3"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "stu-1", res.Failed[0].AccountID)
	assert.Equal(t, xerrors.KindInternal, res.Failed[0].Reason)
	assert.ErrorIs(t, res.Failed[0].Err, boom)
}

func TestApplyBatchFeeIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	req := models.BatchAssessmentRequest{BatchID: "class-10", Amount: dec("300")}

	first, err := f.ledger.ApplyBatchFee(context.Background(), req)
	require.NoError(t, err)
	second, err := f.ledger.ApplyBatchFee(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assertMoney(t, "-600", f.state(t, "stu-3").Paid)
}

func TestApplyBatchFeeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.BatchAssessmentRequest
		want error
	}{
		{name: "zero amount", req: models.BatchAssessmentRequest{BatchID: "class-10", Amount: decimal.Zero}, want: xerrors.ErrValidation},
		{name: "negative amount", req: models.BatchAssessmentRequest{BatchID: "class-10", Amount: dec("-500")}, want: xerrors.ErrValidation},
		{name: "missing batch id", req: models.BatchAssessmentRequest{Amount: dec("500")}, want: xerrors.ErrValidation},
		{name: "unknown batch", req: models.BatchAssessmentRequest{BatchID: "class-12", Amount: dec("500")}, want: xerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ApplyBatchFee(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.publisher.topics())
}

func TestApplyBatchFeeEmptyBatch(t *testing.T) {
	f := newFixture(t)
	f.dir.AddBatch("weekend")

	res, err := f.ledger.ApplyBatchFee(context.Background(), models.BatchAssessmentRequest{BatchID: "weekend", Amount: dec("100")})
	require.NoError(t, err)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
}

func TestApplyBatchFeeCancelledBetweenMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel as soon as the first member's entry is being written
	f := newFixture(t, memory.WithAppendFailure(func(accountID string) error {
		if accountID == "stu-1" {
			cancel()
		}
		return nil
	}))
	f.ledger.batchConcurrency = 1

	res, err := f.ledger.ApplyBatchFee(ctx, models.BatchAssessmentRequest{BatchID: "class-10", Amount: dec("500")})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, res.Succeeded)
	require.Len(t, res.Failed, 2)
	for _, failure := range res.Failed {
		assert.Equal(t, xerrors.KindCanceled, failure.Reason)
		assert.ErrorIs(t, failure.Err, context.Canceled)
	}

	assertMoney(t, "-500", f.state(t, "stu-1").Paid)
	assert.True(t, f.state(t, "stu-2").Paid.IsZero())
}

func TestSummarizeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.UpdateBaseline(ctx, UpdateBaselineRequest{AccountID: "stu-1", TotalFees: dec("12000")})
	require.NoError(t, err)
	_, err = f.ledger.UpdateBaseline(ctx, UpdateBaselineRequest{AccountID: "stu-2", TotalFees: dec("10000")})
	require.NoError(t, err)
	f.record(t, "stu-1", "5000", "cash")
	f.record(t, "stu-2", "2500", "upi")

	sum, err := f.ledger.SummarizeBatch(ctx, "class-10")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Students)
	assertMoney(t, "22000", sum.TotalFees)
	assertMoney(t, "7500", sum.Collected)
	assertMoney(t, "14500", sum.Due)

	f.dir.RemoveStudent("stu-3")
	sum, err = f.ledger.SummarizeBatch(ctx, "class-10")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Students)

	_, err = f.ledger.SummarizeBatch(ctx, "class-12")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
