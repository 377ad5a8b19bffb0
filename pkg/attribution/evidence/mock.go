package evidence

import (
	"context"
	"fmt"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// MockProvider is a fixed response table keyed by finding title, for
// deterministic tests of everything downstream of evidence extraction
// without a network call. A request whose title has no table entry returns
// an Internal error rather than a zero-value bundle, so a missing fixture
// fails loudly instead of silently producing nonsense evidence.
type MockProvider struct {
	Responses map[string]domain.EvidenceBundle
	Errors    map[string]error
}

// NewMockProvider returns an empty table; callers populate Responses/Errors
// directly.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Responses: make(map[string]domain.EvidenceBundle),
		Errors:    make(map[string]error),
	}
}

// Extract implements Provider.
func (m *MockProvider) Extract(_ context.Context, req Request) (domain.EvidenceBundle, error) {
	if err, ok := m.Errors[req.FindingTitle]; ok {
		return domain.EvidenceBundle{}, err
	}
	if bundle, ok := m.Responses[req.FindingTitle]; ok {
		return bundle, nil
	}
	return domain.EvidenceBundle{}, falconerrors.New(falconerrors.KindInternal,
		"extract evidence", fmt.Errorf("no fixture registered for finding %q", req.FindingTitle))
}
