package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dropforge/internal/domain"
)

type batchState int

const (
	batchPending batchState = iota
	batchSubmitted
	batchConfirmed
	batchFailed
)

func (s batchState) String() string {
	switch s {
	case batchPending:
		return "pending"
	case batchSubmitted:
		return "submitted"
	case batchConfirmed:
		return "confirmed"
	case batchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TxTransmitter drives batches through the ledger submission lifecycle.
// Every attempt refreshes the sequencing token and re-signs, so a stale
// token never reaches the wire. Batches within a tier carry no mutual
// dependencies and are submitted concurrently under Concurrency.
type TxTransmitter struct {
	Ledger Ledger
	Signer BatchSigner
	Log    *zap.Logger

	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	ConfirmTimeout time.Duration
	ConfirmPoll    time.Duration
	Concurrency    int
}

// TransmitTier submits one tier's batches. onConfirmed runs for each batch
// as soon as it confirms, before the tier as a whole settles; calls are
// serialized, and a failure there counts against the batch. Confirmed
// batches are never undone by a sibling's failure: every receipt gathered
// before the first error still reaches onConfirmed.
func (t *TxTransmitter) TransmitTier(ctx context.Context, batches []domain.Batch, onConfirmed func(domain.Batch, domain.BatchReceipt) error) error {
	log := t.logger()
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(t.concurrency())

	var mu sync.Mutex
	var firstErr error
	for _, batch := range batches {
		batch := batch
		group.Go(func() error {
			receipt, err := t.transmit(ctx, batch, log)
			if err == nil && onConfirmed != nil {
				mu.Lock()
				err = onConfirmed(batch, *receipt)
				mu.Unlock()
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			// Sibling batches are independent; only context cancellation
			// should stop them early.
			return ctx.Err()
		})
	}
	if err := group.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (t *TxTransmitter) transmit(ctx context.Context, batch domain.Batch, log *zap.Logger) (*domain.BatchReceipt, error) {
	payload, err := batch.EncodePayload()
	if err != nil {
		return nil, err
	}

	state := batchPending
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts(); attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, t.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		submissionID, err := t.submitOnce(ctx, payload)
		if err != nil {
			lastErr = err
			log.Warn("batch submission failed",
				zap.Int("batch", batch.Index),
				zap.Int("tier", batch.Tier),
				zap.Int("attempt", attempt),
				zap.Stringer("state", state),
				zap.Error(err))
			continue
		}
		state = batchSubmitted

		status, err := t.awaitConfirmation(ctx, submissionID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				// Abandoned waits leave the ops pending for the next
				// planning pass.
				return nil, err
			}
			lastErr = err
		case status == domain.ConfirmationConfirmed:
			state = batchConfirmed
			log.Info("batch confirmed",
				zap.Int("batch", batch.Index),
				zap.Int("tier", batch.Tier),
				zap.String("submission", submissionID),
				zap.Int("attempt", attempt))
			return &domain.BatchReceipt{
				BatchIndex:     batch.Index,
				ConfirmationID: submissionID,
				Attempts:       attempt,
				ConfirmedAt:    time.Now().UTC(),
			}, nil
		default:
			lastErr = fmt.Errorf("submission %s rejected by ledger", submissionID)
		}
		state = batchPending
	}

	state = batchFailed
	keys := make([]string, 0, len(batch.Operations))
	for _, op := range batch.Operations {
		keys = append(keys, op.Key())
	}
	log.Error("batch exhausted retries",
		zap.Int("batch", batch.Index),
		zap.Int("tier", batch.Tier),
		zap.Stringer("state", state),
		zap.Error(lastErr))
	return nil, &domain.BatchError{
		BatchIndex: batch.Index,
		Tier:       batch.Tier,
		Attempts:   t.maxAttempts(),
		Operations: keys,
		Err:        lastErr,
	}
}

func (t *TxTransmitter) submitOnce(ctx context.Context, payload []byte) (string, error) {
	token, err := t.Ledger.LatestToken(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh sequencing token: %w", err)
	}
	signature, err := t.Signer.Sign(payload, token)
	if err != nil {
		return "", fmt.Errorf("sign batch: %w", err)
	}
	return t.Ledger.Submit(ctx, domain.BatchSubmission{
		Token:     token,
		Payload:   payload,
		Signature: signature,
		Signer:    t.Signer.Address(),
	})
}

func (t *TxTransmitter) awaitConfirmation(ctx context.Context, submissionID string) (domain.ConfirmationStatus, error) {
	deadline := time.Now().Add(t.confirmTimeout())
	ticker := time.NewTicker(t.confirmPoll())
	defer ticker.Stop()

	for {
		status, err := t.Ledger.Confirmation(ctx, submissionID)
		if err != nil {
			return "", err
		}
		if status != domain.ConfirmationPending {
			return status, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("submission %s unconfirmed after %s", submissionID, t.confirmTimeout())
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// backoff doubles the base delay per failed attempt, capped, with up to
// half a step of jitter so retry waves from concurrent batches spread out.
func (t *TxTransmitter) backoff(failures int) time.Duration {
	delay := t.baseDelay()
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= t.maxDelay() {
			delay = t.maxDelay()
			break
		}
	}
	if delay > t.maxDelay() {
		delay = t.maxDelay()
	}
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(rand.Int63n(half))
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *TxTransmitter) logger() *zap.Logger {
	if t.Log != nil {
		return t.Log
	}
	return zap.NewNop()
}

func (t *TxTransmitter) maxAttempts() int {
	if t.MaxAttempts > 0 {
		return t.MaxAttempts
	}
	return 5
}

func (t *TxTransmitter) baseDelay() time.Duration {
	if t.BaseDelay > 0 {
		return t.BaseDelay
	}
	return 500 * time.Millisecond
}

func (t *TxTransmitter) maxDelay() time.Duration {
	if t.MaxDelay > 0 {
		return t.MaxDelay
	}
	return 8 * time.Second
}

func (t *TxTransmitter) confirmTimeout() time.Duration {
	if t.ConfirmTimeout > 0 {
		return t.ConfirmTimeout
	}
	return 30 * time.Second
}

func (t *TxTransmitter) confirmPoll() time.Duration {
	if t.ConfirmPoll > 0 {
		return t.ConfirmPoll
	}
	return 400 * time.Millisecond
}

func (t *TxTransmitter) concurrency() int {
	if t.Concurrency > 0 {
		return t.Concurrency
	}
	return 4
}
