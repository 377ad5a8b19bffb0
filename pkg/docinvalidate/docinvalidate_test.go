package docinvalidate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/docinvalidate"
	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
)

func TestComputeFingerprint_HashesFullContentByDefault(t *testing.T) {
	doc := &domain.Document{
		Source:  domain.DocumentSource{Kind: domain.SourceGit, Repo: "origin", Path: "docs/spec.md"},
		Content: "first version",
	}
	fp1, err := docinvalidate.ComputeFingerprint(doc, nil)
	require.NoError(t, err)

	doc.Content = "second version"
	fp2, err := docinvalidate.ComputeFingerprint(doc, nil)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2)
	require.Contains(t, fp1, "git:origin:docs/spec.md:")
}

func TestComputeFingerprint_UsesJQFieldWhenConfigured(t *testing.T) {
	queries := docinvalidate.FieldQueries{domain.SourceExternalTracker: ".status"}
	doc := &domain.Document{
		Source:   domain.DocumentSource{Kind: domain.SourceExternalTracker, DocID: "TICKET-1"},
		Content:  "irrelevant noisy mirror content that changes every sync",
		Metadata: map[string]interface{}{"status": "open", "lastSynced": "2026-07-01"},
	}
	fp1, err := docinvalidate.ComputeFingerprint(doc, queries)
	require.NoError(t, err)

	doc.Content = "a completely different noisy mirror"
	fp2, err := docinvalidate.ComputeFingerprint(doc, queries)
	require.NoError(t, err)
	require.Equal(t, fp1, fp2, "content changed but the tracked field did not")

	doc.Metadata["status"] = "closed"
	fp3, err := docinvalidate.ComputeFingerprint(doc, queries)
	require.NoError(t, err)
	require.NotEqual(t, fp1, fp3)
}

func TestComputeFingerprint_MissingFieldErrors(t *testing.T) {
	queries := docinvalidate.FieldQueries{domain.SourceWeb: ".etag"}
	doc := &domain.Document{
		Source:   domain.DocumentSource{Kind: domain.SourceWeb, URL: "https://example.com/page"},
		Metadata: map[string]interface{}{},
	}
	_, err := docinvalidate.ComputeFingerprint(doc, queries)
	require.Error(t, err)
}

func TestOnNewDocument_InvalidatesActiveOccurrencesOnFingerprintChange(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	ctx := context.Background()

	oldFingerprint := "git:origin:docs/spec.md:old"
	active := &domain.PatternOccurrence{ID: "occ-1", DocumentFingerprint: oldFingerprint, Status: domain.OccurrenceActive}
	alreadyInactive := &domain.PatternOccurrence{ID: "occ-2", DocumentFingerprint: oldFingerprint, Status: domain.OccurrenceInactive, InactiveReason: "other"}
	require.NoError(t, repos.Occurrences.Create(ctx, active))
	require.NoError(t, repos.Occurrences.Create(ctx, alreadyInactive))

	inv := docinvalidate.New(&repos, nil)
	newDoc := &domain.Document{
		Source:  domain.DocumentSource{Kind: domain.SourceGit, Repo: "origin", Path: "docs/spec.md"},
		Content: "updated content",
	}
	_, err := inv.OnNewDocument(ctx, oldFingerprint, newDoc)
	require.NoError(t, err)

	got1, err := repos.Occurrences.Get(ctx, "occ-1")
	require.NoError(t, err)
	require.Equal(t, domain.OccurrenceInactive, got1.Status)
	require.Equal(t, domain.InactiveReasonSupersededDoc, got1.InactiveReason)

	got2, err := repos.Occurrences.Get(ctx, "occ-2")
	require.NoError(t, err)
	require.Equal(t, "other", got2.InactiveReason, "already-inactive occurrences keep their original reason")
}

func TestOnNewDocument_NoOpWhenFingerprintUnchanged(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	ctx := context.Background()

	doc := &domain.Document{
		Source:  domain.DocumentSource{Kind: domain.SourceGit, Repo: "origin", Path: "docs/spec.md"},
		Content: "stable content",
	}
	inv := docinvalidate.New(&repos, nil)
	fp, err := docinvalidate.ComputeFingerprint(doc, nil)
	require.NoError(t, err)

	active := &domain.PatternOccurrence{ID: "occ-1", DocumentFingerprint: fp, Status: domain.OccurrenceActive}
	require.NoError(t, repos.Occurrences.Create(ctx, active))

	_, err = inv.OnNewDocument(ctx, fp, doc)
	require.NoError(t, err)

	got, err := repos.Occurrences.Get(ctx, "occ-1")
	require.NoError(t, err)
	require.Equal(t, domain.OccurrenceActive, got.Status)
}

func TestOnNewDocument_NoPreviousFingerprintIsNoOp(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	ctx := context.Background()

	inv := docinvalidate.New(&repos, nil)
	doc := &domain.Document{Source: domain.DocumentSource{Kind: domain.SourceGit, Repo: "o", Path: "p"}, Content: "c"}
	fp, err := inv.OnNewDocument(ctx, "", doc)
	require.NoError(t, err)
	require.NotEmpty(t, fp)
}
