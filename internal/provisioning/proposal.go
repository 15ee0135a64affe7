package provisioning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// JournalWriter persists committed ledger postings
type JournalWriter interface {
	Append(ctx context.Context, postings []models.LedgerPosting) error
}

// Proposal is the result of an analysis, held by the caller until it is
// committed or discarded
type Proposal struct {
	ID          string                   `json:"id"`
	AccountKey  string                   `json:"account_key"`
	WindowStart time.Time                `json:"window_start"`
	WindowEnd   time.Time                `json:"window_end"`
	Entries     []models.AdjustmentEntry `json:"entries"`
	Fingerprint string                   `json:"fingerprint"`
	CreatedAt   time.Time                `json:"created_at"`
	CommittedAt *time.Time               `json:"committed_at,omitempty"`
}

// IsEmpty reports whether the proposal carries no entries
func (p *Proposal) IsEmpty() bool {
	return len(p.Entries) == 0
}

// Postings converts the entries into ledger postings, in date order
func (p *Proposal) Postings() []models.LedgerPosting {
	out := make([]models.LedgerPosting, len(p.Entries))
	for i := range p.Entries {
		out[i] = p.Entries[i].ToPosting()
	}
	return out
}

// CommitResult reports what a commit wrote
type CommitResult struct {
	ProposalID  string                 `json:"proposal_id"`
	Postings    []models.LedgerPosting `json:"postings"`
	CommittedAt time.Time              `json:"committed_at"`
}

// Propose runs ComputeAdjustments and wraps the entries in a proposal
func (e *Engine) Propose(ctx context.Context, account models.AccountRegistryEntry,
	source MovementSource, start, end time.Time) (*Proposal, error) {

	entries, err := e.ComputeAdjustments(ctx, account, source, start, end)
	if err != nil {
		return nil, err
	}

	return &Proposal{
		ID:          e.newID(),
		AccountKey:  account.Key(),
		WindowStart: models.DateOnly(start),
		WindowEnd:   models.DateOnly(end),
		Entries:     entries,
		Fingerprint: fingerprint(entries),
		CreatedAt:   e.now(),
	}, nil
}

// Commit writes the proposal's entries through w and marks it committed.
// A proposal can be committed once; one whose entries changed after
// Propose is rejected.
func (e *Engine) Commit(ctx context.Context, proposal *Proposal, w JournalWriter) (*CommitResult, error) {
	if proposal == nil {
		return nil, errors.ProvisioningError(errors.CodeProposalInvalid, "", nil)
	}

	log := e.log.WithFields(logger.Fields{"account": proposal.AccountKey, "proposal": proposal.ID})

	if proposal.CommittedAt != nil {
		return nil, errors.ProvisioningError(errors.CodeProposalCommitted, proposal.AccountKey, nil).
			WithContext("committed_at", proposal.CommittedAt.Format(time.RFC3339))
	}
	if fingerprint(proposal.Entries) != proposal.Fingerprint {
		return nil, errors.ProvisioningError(errors.CodeProposalInvalid, proposal.AccountKey, nil).
			WithContext("proposal", proposal.ID)
	}

	postings := proposal.Postings()
	if len(postings) > 0 {
		if err := w.Append(ctx, postings); err != nil {
			log.WithError(err).Error("could not write adjustment entries")
			return nil, errors.ProvisioningError(errors.CodeJournalWrite, proposal.AccountKey, err)
		}
	}

	committedAt := e.now()
	proposal.CommittedAt = &committedAt
	log.Infof("committed %d adjustment entries", len(postings))

	return &CommitResult{
		ProposalID:  proposal.ID,
		Postings:    postings,
		CommittedAt: committedAt,
	}, nil
}

func fingerprint(entries []models.AdjustmentEntry) string {
	h := sha256.New()
	for i := range entries {
		en := &entries[i]
		h.Write([]byte(strings.Join([]string{
			en.ID,
			en.Date.Format(models.DateLayout),
			string(en.Direction),
			en.Amount.StringFixed(2),
			en.DebitAccount,
			en.CreditAccount,
		}, "|")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
