package evidence

import "fmt"

// buildPrompt renders a Request into the text sent to whichever LLM
// provider is handling this extraction. Both the Anthropic and Bedrock
// providers share this builder since both ultimately run the same model
// family and need identical instructions to produce a comparable bundle.
func buildPrompt(req Request) string {
	return fmt.Sprintf(`You are extracting structured evidence for a failure-attribution pipeline.

Carrier stage: %s

Carrier document:
%s

Finding title: %s

Finding description:
%s

Agent transcript excerpt:
%s

%s`, req.CarrierStage, req.CarrierDocument, req.FindingTitle, req.FindingDescription, req.AgentTranscript, formatInstructions())
}
