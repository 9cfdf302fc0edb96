// Package model maps the enrichment capabilities used by LLM-backed stages
// (summarization, tagging) onto concrete model endpoints with fallback chains.
package model

// Capability is a semantic name for the kind of completion a stage needs.
// Stages ask for "summarization" rather than a model name.
type Capability string

const (
	// CapabilitySummarization produces short prose summaries of articles and comments.
	CapabilitySummarization Capability = "summarization"

	// CapabilityTagging classifies content against a fixed tag vocabulary.
	CapabilityTagging Capability = "tagging"

	// CapabilityFast is for cheap, low-latency calls.
	CapabilityFast Capability = "fast"
)

// IsValid reports whether c is one of the built-in capabilities.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilitySummarization, CapabilityTagging, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts s to a Capability. Unknown names are kept as-is so
// configuration can introduce capabilities the binary does not know about.
func ParseCapability(s string) Capability {
	return Capability(s)
}
