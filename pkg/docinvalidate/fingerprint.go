// Package docinvalidate implements Document-Change Invalidation (§4.10):
// computing a source document's stable (kind, identifier, hash)
// fingerprint, and — when a new document version carries a different
// fingerprint than the one occurrences were recorded against — marking
// those occurrences inactive rather than rewriting the patterns they fed.
package docinvalidate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

// FieldQueries maps a document source kind to a jq expression selecting
// the metadata field that determines its identity, for sources where the
// full content is too volatile or too large to hash directly (e.g. an
// external tracker's content mirror churns on every sync even when the
// field agents actually relied on — a ticket's acceptance criteria —
// hasn't changed). A kind with no entry falls back to hashing Content.
type FieldQueries map[domain.DocumentSourceKind]string

// ComputeFingerprint derives doc's stable fingerprint string: its source
// kind, its source identifier, and a content hash. When queries names a
// jq expression for doc.Source.Kind, the hash covers only the extracted
// metadata field; otherwise it covers the full document content.
func ComputeFingerprint(doc *domain.Document, queries FieldQueries) (string, error) {
	hashInput := doc.Content
	if expr, ok := queries[doc.Source.Kind]; ok && expr != "" {
		val, err := extractMetadataField(doc.Metadata, expr)
		if err != nil {
			return "", err
		}
		hashInput = fmt.Sprintf("%v", val)
	}
	sum := sha256.Sum256([]byte(hashInput))
	return fmt.Sprintf("%s:%s:%s", doc.Source.Kind, doc.Source.Identifier(), hex.EncodeToString(sum[:])), nil
}

func extractMetadataField(metadata map[string]interface{}, jqExpr string) (interface{}, error) {
	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("parse jq expression %q: %w", jqExpr, err)
	}
	iter := query.Run(metadata)
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("jq expression %q produced no result", jqExpr)
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("jq expression resolved to null")
	}
	return v, nil
}
