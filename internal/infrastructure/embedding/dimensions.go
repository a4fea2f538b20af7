package embedding

import "strings"

var modelDimensions = map[string]int{
	"sentence-transformers/all-minilm-l6-v2":  384,
	"all-minilm-l6-v2":                        384,
	"sentence-transformers/all-mpnet-base-v2": 768,
	"all-mpnet-base-v2":                       768,
	"nomic-embed-text":                        768,
	"text-embedding-3-small":                  1536,
	"text-embedding-ada-002":                  1536,
	"text-embedding-3-large":                  3072,
	"embedding-2":                             1024,
	"embedding-3":                             2048,
}

const defaultDimension = 768

// DimensionFor returns the vector size of a known model. An explicit
// override wins when positive.
func DimensionFor(model string, override int) int {
	if override > 0 {
		return override
	}
	if dim, ok := modelDimensions[strings.ToLower(strings.TrimSpace(model))]; ok {
		return dim
	}
	return defaultDimension
}
