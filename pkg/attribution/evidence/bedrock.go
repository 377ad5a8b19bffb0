package evidence

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/telemetry"
)

// DefaultBedrockModelID is Bedrock's model identifier for the same Claude
// family the direct Anthropic provider uses, so a fallback produces
// comparably-shaped bundles.
const DefaultBedrockModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// bedrockInvokeBody is Bedrock's Anthropic-on-Bedrock request envelope.
type bedrockInvokeBody struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	Messages         []bedrockInvokeMessage   `json:"messages"`
}

type bedrockInvokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockInvokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// BedrockProvider calls the Claude model hosted on AWS Bedrock, used as the
// fallback provider when the direct Anthropic API is unreachable.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockProvider builds a provider from an already-resolved AWS SDK
// config (the caller is responsible for config.LoadDefaultConfig and
// region/credential resolution).
func NewBedrockProvider(client *bedrockruntime.Client) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: DefaultBedrockModelID}
}

// Extract implements Provider.
func (p *BedrockProvider) Extract(ctx context.Context, req Request) (domain.EvidenceBundle, error) {
	ctx, span := telemetry.StartEvidenceExtraction(ctx, "bedrock", p.modelID)
	bundle, err := p.extract(ctx, req)
	telemetry.EndWithError(span, err)
	return bundle, err
}

func (p *BedrockProvider) extract(ctx context.Context, req Request) (domain.EvidenceBundle, error) {
	body, err := json.Marshal(bedrockInvokeBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        2048,
		Messages: []bedrockInvokeMessage{
			{Role: "user", Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return domain.EvidenceBundle{}, falconerrors.FailedTo("marshal bedrock invoke body", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return domain.EvidenceBundle{}, falconerrors.New(falconerrors.KindTimeout, "call bedrock for evidence extraction", err).WithComponent("bedrock")
	}

	var resp bedrockInvokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return domain.EvidenceBundle{}, falconerrors.New(falconerrors.KindAttributionInvalid, "decode bedrock response envelope", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseAndValidate(req.CarrierStage, text)
}
