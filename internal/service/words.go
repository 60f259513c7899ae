package service

import (
	"encoding/json"
	"strings"
)

// countWords counts the words in every string value of a JSON document.
// Keys are not counted. Content that is not JSON counts as zero.
func countWords(content []byte) int64 {
	if len(content) == 0 {
		return 0
	}

	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return 0
	}

	return walkWords(doc)
}

func walkWords(node any) int64 {
	switch n := node.(type) {
	case string:
		return int64(len(strings.Fields(n)))
	case []any:
		var total int64
		for _, item := range n {
			total += walkWords(item)
		}
		return total
	case map[string]any:
		var total int64
		for _, item := range n {
			total += walkWords(item)
		}
		return total
	}

	return 0
}
