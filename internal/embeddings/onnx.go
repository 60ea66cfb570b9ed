package embeddings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ONNXLibraryPath locates the ONNX runtime shared library fastembed needs.
// ONNX_PATH wins; otherwise ~/.local/share/recall/lib is checked. It
// returns "" when neither exists.
func ONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	lib := "libonnxruntime.so"
	if runtime.GOOS == "darwin" {
		lib = "libonnxruntime.dylib"
	}
	managed := filepath.Join(home, ".local", "share", "recall", "lib", lib)
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
