package embeddings

// knownModels maps supported model names to their output dimension.
var knownModels = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"all-MiniLM-L6-v2":                       384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// modelDimension returns the dimension for a model name, guessing from the
// size suffix of unknown names and defaulting to 384.
func modelDimension(model string) int {
	if dim, ok := knownModels[model]; ok {
		return dim
	}
	switch {
	case containsFold(model, "large"):
		return 1024
	case containsFold(model, "base"):
		return 768
	default:
		return 384
	}
}

// DefaultModel is used when no model is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"
