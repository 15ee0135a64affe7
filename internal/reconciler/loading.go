package reconciler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"bank-ledger-reconciler/internal/history"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/pkg/logger"
)

func (rs *ReconciliationService) logStats(kind string, stats *parsers.ParseStats) {
	if stats == nil {
		return
	}
	log := rs.logger.WithFields(logger.Fields{
		"file":    stats.File,
		"kind":    kind,
		"rows":    stats.TotalRows,
		"valid":   stats.RecordsValid,
		"skipped": stats.Skipped(),
	})
	if stats.HasErrors() {
		log.Warnf("%d rows of %s could not be read", stats.Skipped(), stats.File)
		return
	}
	log.Debug("file loaded")
}

func (rs *ReconciliationService) loadRegistry(ctx context.Context, path string) (*models.AccountRegistry, *parsers.ParseStats, error) {
	parser, err := parsers.NewRegistryParser(rs.config.Input)
	if err != nil {
		return nil, nil, err
	}

	registry, stats, err := parser.ParseFile(ctx, path)
	if err != nil {
		rs.logger.WithError(err).WithField("registry_file", path).Error("failed to load account registry")
		return nil, stats, err
	}
	rs.logStats("registry", stats)
	return registry, stats, nil
}

// loadStatements parses the statement files concurrently and inserts their
// rows in file order, so a row repeated across files is kept once
func (rs *ReconciliationService) loadStatements(ctx context.Context, files []string, defaultAccount string) (*history.StatementHistory, history.InsertStats, []*parsers.ParseStats, error) {
	var total history.InsertStats

	parser, err := parsers.NewBankStatementParser(rs.config.Input, defaultAccount)
	if err != nil {
		return nil, total, nil, err
	}

	rows := make([][]models.BankTransaction, len(files))
	stats := make([]*parsers.ParseStats, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rs.config.MaxConcurrentFiles)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			parsed, st, err := parser.ParseFile(gctx, path)
			if err != nil {
				rs.logger.WithError(err).WithField("statement_file", path).Error("failed to load bank statement")
				return err
			}
			rows[i], stats[i] = parsed, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, total, nil, err
	}

	statements := history.NewStatementHistory()
	for i := range files {
		rs.logStats("statement", stats[i])
		inserted := statements.Insert(rows[i])
		total.Inserted += inserted.Inserted
		total.Duplicates += inserted.Duplicates
		total.Rejected += inserted.Rejected
	}

	if total.Duplicates > 0 {
		rs.logger.WithField("duplicates", total.Duplicates).Info("statement rows repeated across files were kept once")
	}

	return statements, total, stats, nil
}

func (rs *ReconciliationService) loadLedger(ctx context.Context, path string) ([]models.LedgerPosting, *parsers.ParseStats, error) {
	parser, err := parsers.NewLedgerParser(rs.config.Input)
	if err != nil {
		return nil, nil, err
	}

	postings, stats, err := parser.ParseFile(ctx, path)
	if err != nil {
		rs.logger.WithError(err).WithField("ledger_file", path).Error("failed to load ledger")
		return nil, stats, err
	}
	rs.logStats("ledger", stats)
	return postings, stats, nil
}

func (rs *ReconciliationService) loadInstallments(ctx context.Context, installmentFile, planFile string) ([]models.Installment, []models.InstallmentPlan, []*parsers.ParseStats, error) {
	parser, err := parsers.NewInstallmentParser(rs.config.Input)
	if err != nil {
		return nil, nil, nil, err
	}

	list, stats, err := parser.ParseInstallmentsFile(ctx, installmentFile)
	if err != nil {
		rs.logger.WithError(err).WithField("installment_file", installmentFile).Error("failed to load installments")
		return nil, nil, nil, err
	}
	rs.logStats("installments", stats)
	all := []*parsers.ParseStats{stats}

	if planFile == "" {
		return list, nil, all, nil
	}

	plans, planStats, err := parser.ParsePlansFile(ctx, planFile)
	if err != nil {
		rs.logger.WithError(err).WithField("plan_file", planFile).Error("failed to load installment plans")
		return nil, nil, nil, err
	}
	rs.logStats("plans", planStats)
	return list, plans, append(all, planStats), nil
}
