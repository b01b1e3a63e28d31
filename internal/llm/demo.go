package llm

import (
	_ "embed"
)

//go:embed demo_response.json
var demoResponse string

// DemoResponse returns the canned weekly plan used when no provider can be
// reached. It always parses as a structured plan.
func DemoResponse() string {
	return demoResponse
}
