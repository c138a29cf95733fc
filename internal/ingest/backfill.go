package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/embedding"
)

// BackfillReport summarizes one backfill pass.
type BackfillReport struct {
	Candidates int
	Embedded   int
	Failed     int
}

// Backfill computes and persists embeddings for every rule that lacks one,
// in id order. Each rule is committed individually so a failure partway
// through keeps prior progress; failures are logged and counted, not fatal.
// Re-running is a no-op for already-embedded rules.
func (p *Pipeline) Backfill(ctx context.Context) (*BackfillReport, error) {
	pending, err := p.store.RulesMissingEmbedding(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules missing embeddings: %w", err)
	}

	report := &BackfillReport{Candidates: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	for i, rule := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.logger.Debug("backfilling rule",
			zap.Int64("rule_id", rule.ID),
			zap.Int("progress", i+1),
			zap.Int("total", len(pending)),
		)
		emb, err := p.embedder.Embed(ctx, rule.Text)
		if err != nil {
			// A failed model load fails every remaining rule the same way;
			// stop instead of logging once per rule.
			if errors.Is(err, embedding.ErrInitialization) {
				return report, err
			}
			report.Failed++
			p.logger.Warn("embedding failed, skipping rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
			continue
		}
		if err := p.store.UpdateEmbedding(ctx, rule.ID, emb); err != nil {
			report.Failed++
			p.logger.Warn("embedding update failed, skipping rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
			continue
		}
		report.Embedded++
	}

	p.logger.Info("backfill complete",
		zap.Int("candidates", report.Candidates),
		zap.Int("embedded", report.Embedded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
