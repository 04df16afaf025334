package engine

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeJSON parses an LLM response into T. Models occasionally wrap JSON in
// markdown fences or prose, so the object boundaries are located first.
func decodeJSON[T any](response string) (T, error) {
	var result T

	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimPrefix(response, "json")
	response = strings.TrimSuffix(response, "```")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return result, errm.New("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return result, errm.Wrap(err, "failed to parse JSON response")
	}
	return result, nil
}
