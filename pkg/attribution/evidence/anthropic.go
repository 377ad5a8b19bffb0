package evidence

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/telemetry"
)

// DefaultAnthropicModel is the Claude model used for evidence extraction.
// Kept distinct from whatever model the coding agent subprocesses run, so
// provider and consumer can be tuned independently.
const DefaultAnthropicModel = anthropic.ModelClaude3_5SonnetLatest

// AnthropicProvider calls the direct Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider builds a provider from an API key, read by the
// caller from ANTHROPIC_API_KEY.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultAnthropicModel,
	}
}

// Extract implements Provider.
func (p *AnthropicProvider) Extract(ctx context.Context, req Request) (domain.EvidenceBundle, error) {
	ctx, span := telemetry.StartEvidenceExtraction(ctx, "anthropic", string(p.model))
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		telemetry.EndWithError(span, err)
		return domain.EvidenceBundle{}, falconerrors.New(falconerrors.KindTimeout, "call anthropic for evidence extraction", err).WithComponent("anthropic")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	bundle, err := parseAndValidate(req.CarrierStage, text)
	telemetry.EndWithError(span, err)
	return bundle, err
}
