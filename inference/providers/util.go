// Package providers - ONNX Runtime environment setup.
package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides the default shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var envMu sync.Mutex

// GetSharedLibPath returns the onnxruntime shared library to load: override
// when set, then $ONNXRUNTIME_SHARED_LIBRARY_PATH, then a per-platform default
// under ./third_party.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no default.
func GetSharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env, nil
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll", nil
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library known for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// InitializeEnvironment loads the onnxruntime shared library once per process.
// Later calls are no-ops, whatever path they pass.
func InitializeEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	path, err := GetSharedLibPath(libraryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", path)
	}

	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}
