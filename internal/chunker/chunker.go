// Package chunker splits source files into bounded line-range chunks, the
// unit of indexing and retrieval.
package chunker

import (
	"bytes"
	"path/filepath"
	"strings"
)

// CharsPerToken is the heuristic number of characters per token used to
// convert token budgets into character budgets. It is an approximation,
// not an exact tokenizer; the chunking contract only promises bounded,
// deterministic chunks.
const CharsPerToken = 4

// Chunk is one bounded segment of a source file. Boundaries are a pure
// function of the file content, so re-chunking unchanged content reproduces
// identical chunks.
type Chunk struct {
	Seq       int
	Path      string
	StartLine int
	EndLine   int
	Content   string
	Language  string
}

// Config controls chunk sizing and the extension allow-list.
type Config struct {
	MaxTokens  int
	MinTokens  int
	Extensions []string
}

// Chunker splits files into chunks by contiguous line ranges. Splitting is
// not syntax-aware; a chunk may cross a function or class boundary.
type Chunker struct {
	maxTokens int
	minTokens int
	languages map[string]string
}

// extLanguages maps known extensions to a language tag recorded on chunks.
var extLanguages = map[string]string{
	"go": "go", "py": "python", "js": "javascript", "jsx": "javascript",
	"ts": "typescript", "tsx": "typescript", "java": "java", "rb": "ruby",
	"rs": "rust", "c": "c", "h": "c", "cpp": "cpp", "hpp": "cpp", "cc": "cpp",
	"cs": "csharp", "php": "php", "swift": "swift", "kt": "kotlin",
	"scala": "scala", "sh": "shell", "sql": "sql", "proto": "protobuf",
	"yaml": "yaml", "yml": "yaml", "toml": "toml", "md": "markdown",
}

// New creates a Chunker from config.
func New(cfg Config) *Chunker {
	languages := make(map[string]string, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")
		lang, ok := extLanguages[ext]
		if !ok {
			lang = ext
		}
		languages[ext] = lang
	}
	return &Chunker{
		maxTokens: cfg.MaxTokens,
		minTokens: cfg.MinTokens,
		languages: languages,
	}
}

// Supported reports whether the path's extension is on the allow-list.
func (c *Chunker) Supported(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := c.languages[ext]
	return ok
}

// Language returns the language tag for a supported path, or "".
func (c *Chunker) Language(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return c.languages[ext]
}

// Split chunks file content into ordered, bounded segments. It returns nil
// for unsupported paths, binary content, and empty files.
func (c *Chunker) Split(path string, content []byte) []Chunk {
	if !c.Supported(path) {
		return nil
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	if isBinary(content) {
		return nil
	}

	lang := c.Language(path)
	lines := strings.Split(string(content), "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	maxChars := c.maxTokens * CharsPerToken
	minChars := c.minTokens * CharsPerToken

	var chunks []Chunk
	var buf []string
	bufChars := 0
	startLine := 1

	flush := func(endLine int) {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Seq:       len(chunks),
			Path:      path,
			StartLine: startLine,
			EndLine:   endLine,
			Content:   strings.Join(buf, "\n"),
			Language:  lang,
		})
		buf = nil
		bufChars = 0
		startLine = endLine + 1
	}

	for i, line := range lines {
		lineChars := len(line) + 1
		if bufChars > 0 && bufChars+lineChars > maxChars {
			flush(i)
		}
		buf = append(buf, line)
		bufChars += lineChars
	}

	// Fold an undersized tail into the previous chunk rather than emitting
	// a degenerate trailing chunk.
	if bufChars < minChars && len(chunks) > 0 {
		last := &chunks[len(chunks)-1]
		last.Content = last.Content + "\n" + strings.Join(buf, "\n")
		last.EndLine = len(lines)
	} else {
		flush(len(lines))
	}

	return chunks
}

// isBinary sniffs for a NUL byte in the leading window, the same test git
// uses to classify files.
func isBinary(content []byte) bool {
	window := content
	if len(window) > 8000 {
		window = window[:8000]
	}
	return bytes.IndexByte(window, 0) >= 0
}
