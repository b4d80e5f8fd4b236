package ffi

import (
	"os"
	"path/filepath"
	"runtime"
)

// Module is one loaded native library.
type Module interface {
	// Lookup returns the address of the named export.
	Lookup(name string) (uintptr, error)
	// Invoke calls the function at fn with integer-class arguments and
	// returns the raw integer result register.
	Invoke(fn uintptr, args ...uintptr) uintptr
	// SystemFree returns the C allocator's free, used to release strings
	// when the module does not export its own deallocator.
	SystemFree() (uintptr, error)
	// Close unloads the library.
	Close() error
}

// Loader opens native modules.
type Loader interface {
	Open(path string) (Module, error)
}

type systemLoader struct{}

func (systemLoader) Open(path string) (Module, error) {
	return openLibrary(path)
}

// LibraryName returns the platform file name for a module base name.
func LibraryName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// Locate returns the path of the module with the given base name, searching
// next to the running executable first and then the working directory. When
// nothing is found the bare file name is returned so the system's library
// search applies.
func Locate(name string) string {
	libName := LibraryName(name)

	var searchPaths []string
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		searchPaths = append(searchPaths,
			filepath.Join(execDir, libName),
			filepath.Join(execDir, "..", "lib", libName),
		)
		// app bundle locations
		if runtime.GOOS == "ios" || runtime.GOOS == "darwin" {
			searchPaths = append(searchPaths,
				filepath.Join(execDir, "Frameworks", libName),
				filepath.Join(execDir, "..", "Frameworks", libName),
			)
		}
	}
	searchPaths = append(searchPaths, libName)

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}

	return libName
}
