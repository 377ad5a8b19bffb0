package evidence

import "github.com/tmc/langchaingo/outputparser"

// bundleSchema describes the EvidenceBundle wire shape to langchaingo's
// structured output parser. Its format instructions are appended to every
// provider prompt so the model is told exactly which fields, and which enum
// values, the core's own strict validation in parseAndValidate will accept.
func bundleSchema() outputparser.Structured {
	return outputparser.NewStructured([]outputparser.ResponseSchema{
		{Name: "carrierQuote", Description: "the exact or closest-paraphrase text of the instruction the agent is accused of violating"},
		{Name: "carrierQuoteType", Description: "one of: verbatim, paraphrase, inferred"},
		{Name: "carrierInstructionKind", Description: "one of: explicitly_harmful, benign_but_missing_guardrails, descriptive, unknown"},
		{Name: "carrierLocation", Description: "a location string within the carrier document, e.g. a line range or heading"},
		{Name: "hasCitation", Description: "true if the carrier document cites an external source for this instruction"},
		{Name: "citedSources", Description: "list of source identifiers cited, empty if hasCitation is false"},
		{Name: "sourceRetrievable", Description: "true if every cited source could be fetched and read"},
		{Name: "sourceAgreesWithCarrier", Description: "one of: true, false, unknown"},
		{Name: "mandatoryDocMissing", Description: "true if a document the carrier stage requires was absent"},
		{Name: "missingDocId", Description: "identifier of the missing mandatory document, empty otherwise"},
		{Name: "vaguenessSignals", Description: "list of phrases in the carrier instruction that are vague or underspecified"},
		{Name: "hasTestableAcceptanceCriteria", Description: "true if the carrier instruction states criteria that could be mechanically checked"},
		{Name: "conflictSignals", Description: "list of {docA, docB, topic, excerptA, excerptB} objects for guidance documents that disagree"},
	})
}

// formatInstructions renders the schema's prose instructions for inclusion
// in a provider prompt.
func formatInstructions() string {
	return bundleSchema().GetFormatInstructions()
}
