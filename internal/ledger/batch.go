package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models/events"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

// ApplyBatchFee records one assessment of -Amount for every member of the
// batch as resolved at call time. Members are independent: a failing member
// is reported in Failed and never stops the others, and nothing is retried.
// Calling it twice assesses twice.
//
// Cancelling ctx stops members that have not started yet; they are reported
// as failed with the context error. Members already written stay written.
func (l *Ledger) ApplyBatchFee(ctx context.Context, req models.BatchAssessmentRequest) (result models.BatchResult, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("apply_batch_fee", xerrors.Kind(err), started) }()

	if req.BatchID == "" {
		return models.BatchResult{}, fmt.Errorf("batch id is required: %w", xerrors.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return models.BatchResult{}, fmt.Errorf("batch fee must be a positive amount: %w", xerrors.ErrValidation)
	}

	members, err := l.directory.BatchMembers(ctx, req.BatchID)
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("resolve batch %s: %w", req.BatchID, err)
	}

	fee := req.Amount.Neg()
	outcomes := make([]error, len(members))

	var g errgroup.Group
	g.SetLimit(l.batchConcurrency)
	for i, member := range members {
		if err := ctx.Err(); err != nil {
			outcomes[i] = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = err
				return nil
			}
			// once started, a member's write is not interrupted
			_, outcomes[i] = l.RecordEntry(context.WithoutCancel(ctx), RecordEntryRequest{
				AccountID: member,
				Amount:    fee,
				Note:      req.Note,
			})
			return nil
		})
	}
	_ = g.Wait()

	result = models.BatchResult{
		RunID:     uuid.NewString(),
		BatchID:   req.BatchID,
		Succeeded: make([]string, 0, len(members)),
		Failed:    []models.BatchFailure{},
	}
	for i, member := range members {
		if err := outcomes[i]; err != nil {
			kind := xerrors.Kind(err)
			l.metrics.BatchMember(kind)
			result.Failed = append(result.Failed, models.BatchFailure{
				AccountID: member,
				Reason:    kind,
				Message:   err.Error(),
				Err:       err,
			})
			continue
		}
		l.metrics.BatchMember("")
		result.Succeeded = append(result.Succeeded, member)
	}

	l.log.Info("batch fee applied",
		zap.String("run_id", result.RunID),
		zap.String("batch_id", req.BatchID),
		zap.String("amount", req.Amount.String()),
		zap.Int("members", len(members)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	l.publish(ctx, events.TopicBatchAssessed, req.BatchID, events.BatchAssessed{
		RunID:      result.RunID,
		BatchID:    req.BatchID,
		Amount:     req.Amount,
		Note:       req.Note,
		Succeeded:  len(result.Succeeded),
		Failed:     len(result.Failed),
		OccurredAt: l.now().UTC(),
	})
	return result, nil
}

// SummarizeBatch totals fees, collections and dues over the batch's current
// members. Members the directory no longer knows are left out.
func (l *Ledger) SummarizeBatch(ctx context.Context, batchID string) (summary models.BatchSummary, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("summarize_batch", xerrors.Kind(err), started) }()

	members, err := l.directory.BatchMembers(ctx, batchID)
	if err != nil {
		return models.BatchSummary{}, fmt.Errorf("resolve batch %s: %w", batchID, err)
	}

	summary = models.BatchSummary{
		BatchID:   batchID,
		TotalFees: decimal.Zero,
		Collected: decimal.Zero,
		Due:       decimal.Zero,
	}
	for _, member := range members {
		state, err := l.GetAccountState(ctx, member)
		if errors.Is(err, xerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.BatchSummary{}, err
		}
		summary.Students++
		summary.TotalFees = summary.TotalFees.Add(state.TotalFees)
		summary.Collected = summary.Collected.Add(state.Paid)
		summary.Due = summary.Due.Add(state.Due)
	}
	return summary, nil
}
