package model

import (
	"fmt"
	"strings"
)

var finishReasonKeys = []string{"finish_reason", "finishreason", "stop_reason", "stopreason"}

var truncationReasons = map[string]bool{
	"length":     true,
	"max_tokens": true,
	"max_token":  true,
}

// FinishReason returns the provider's finish reason found in metadata, or "".
// Keys are matched case-insensitively at the top level and one level below
// a "response_json" object.
func FinishReason(metadata map[string]any) string {
	if r := lookupFinishReason(metadata); r != "" {
		return r
	}
	for k, v := range metadata {
		if !strings.EqualFold(k, "response_json") {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			return lookupFinishReason(nested)
		}
	}
	return ""
}

func lookupFinishReason(m map[string]any) string {
	for _, want := range finishReasonKeys {
		for k, v := range m {
			if strings.ToLower(k) == want && v != nil {
				return fmt.Sprint(v)
			}
		}
	}
	return ""
}

// Truncated reports whether reason means the output hit a token limit.
func Truncated(reason string) bool {
	return truncationReasons[strings.ToLower(strings.TrimSpace(reason))]
}
