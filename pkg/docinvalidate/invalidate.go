package docinvalidate

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
)

// Invalidator computes document fingerprints and invalidates the
// occurrences referencing a document's previous version once it changes.
type Invalidator struct {
	repos   *repository.Repositories
	queries FieldQueries
}

// New returns an Invalidator backed by repos, using queries to decide
// per-source-kind which metadata field identifies a document's content
// (see FieldQueries). A nil queries falls back to hashing full content
// for every source kind.
func New(repos *repository.Repositories, queries FieldQueries) *Invalidator {
	return &Invalidator{repos: repos, queries: queries}
}

// OnNewDocument computes newDoc's fingerprint and, when it differs from
// previousFingerprint (and a previous fingerprint exists), marks every
// active occurrence referencing previousFingerprint inactive with
// InactiveReasonSupersededDoc. No pattern definition is rewritten — spec
// §4.10 leaves that to confidence decay. Returns the computed fingerprint
// for the caller to store on newDoc.
func (inv *Invalidator) OnNewDocument(ctx context.Context, previousFingerprint string, newDoc *domain.Document) (string, error) {
	fingerprint, err := ComputeFingerprint(newDoc, inv.queries)
	if err != nil {
		return "", err
	}
	if previousFingerprint == "" || previousFingerprint == fingerprint {
		return fingerprint, nil
	}

	stale, err := inv.repos.Occurrences.ListByDocumentFingerprint(ctx, previousFingerprint)
	if err != nil {
		return "", err
	}
	for _, o := range stale {
		if o.Status != domain.OccurrenceActive {
			continue
		}
		o.Status = domain.OccurrenceInactive
		o.InactiveReason = domain.InactiveReasonSupersededDoc
		if err := inv.repos.Occurrences.Update(ctx, o); err != nil {
			return "", err
		}
	}
	return fingerprint, nil
}
