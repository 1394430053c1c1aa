package nlp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

const (
	AnnotateTemperature = 0.3
	ClusterTemperature  = 0.3
)

// Schema renders the JSON schema of v for embedding in a prompt.
func Schema(v any) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("nlp: schema for %T: %v", v, err))
	}
	return string(raw)
}

var analysisSchema = Schema(&Analysis{})

func annotatePrompt(text string) string {
	return fmt.Sprintf(`Analyze the following customer feedback and provide a structured analysis.

Feedback: %q

Respond with a single JSON object matching this schema:
%s

Guidelines:
- sentiment_score runs from -1 (very negative) to 1 (very positive)
- urgency_score runs from 1 (low) to 10 (critical)
- Extract features actually mentioned, like "dashboard", "mobile app" or "search"
- Topics should be high-level categories
- Keywords should be the most meaningful words from the feedback`, text, analysisSchema)
}

var clusterSchema = Schema(&clusterResponse{})

func clusterPrompt(items []Item) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "[%d] %s\n", it.ID, it.Text)
	}

	return fmt.Sprintf(`Group the following customer feedback items into 3-5 meaningful clusters based on their themes and topics.

Feedback items:
%s
Respond with a single JSON object matching this schema:
%s

Guidelines:
- Create 3-5 clusters at most
- Give each cluster a clear, descriptive name
- Group feedback with similar themes, issues or requests together
- Every feedback item should belong to at least one cluster
- Only use the ids shown in square brackets`, b.String(), clusterSchema)
}
