package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/closer/internal/compiler"
)

// LoadResult is a compiled problem and the CUE value it came from.
type LoadResult struct {
	Problem   *compiler.Problem
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files loaded
}

// LoadError represents an error that occurred while loading a problem.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProblem loads and compiles the problem at path. A file is loaded on
// its own; a directory is loaded as one CUE package so algebras and the
// problem may live in separate files. Validation is left to the caller.
func LoadProblem(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("problem not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing problem: %v", err)}
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	fileCount := 1
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		fileCount = len(files)
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		cfg.Dir = filepath.Dir(path)
		args = []string{"./" + filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	p, err := compiler.Compile(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{Problem: p, CUEValue: value, FileCount: fileCount}, nil
}

// loadValidProblem loads the problem at path and fails on the first
// validation error.
func loadValidProblem(path string) (*compiler.Problem, error) {
	res, err := LoadProblem(path)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(res.Problem); len(verrs) > 0 {
		return nil, &LoadError{Code: verrs[0].Code, Message: fmt.Sprintf("%s: %s", verrs[0].Field, verrs[0].Message)}
	}
	return res.Problem, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompileFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands. Problem
// validation codes (E100-E199) come from the compiler package.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCompileFailed = "E008" // Problem shape error

	// Run errors
	ErrCodeStore     = "E020" // Checkpoint database error
	ErrCodeClosure   = "E021" // Engine rejected the configuration
	ErrCodeCancelled = "E022" // Closure interrupted
	ErrCodeMismatch  = "E023" // Strategies computed different closures
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeCompileFailed
	}
}
