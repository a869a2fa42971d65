package llm

import "fmt"

// ExtractJSONObject pulls the first balanced JSON object out of a model
// response. Models occasionally wrap output in prose or code fences, so the
// raw response cannot be unmarshalled directly.
func ExtractJSONObject(response string) (string, error) {
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: no JSON object found in response", ErrGenerationMalformed)
}
