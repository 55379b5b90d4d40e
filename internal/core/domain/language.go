package domain

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps file extensions to programming languages.
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".json":  "json",
	".xml":   "xml",
	".proto": "protobuf",
	".lua":   "lua",
	".zig":   "zig",
	".ex":    "elixir",
	".exs":   "elixir",
	".erl":   "erlang",
	".hs":    "haskell",
	".ml":    "ocaml",
	".r":     "r",
	".pl":    "perl",
	".vim":   "vimscript",
}

// DetectLanguage infers the language of a file from its extension.
// Returns the empty string when unknown.
func DetectLanguage(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}

// DetectContentType classifies a file by its extension.
// Markdown and known prose extensions map to their types; recognised
// source extensions are code; everything else is plain text.
func DetectContentType(path string) ContentType {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown", ".mdx":
		return ContentTypeMarkdown
	case ".txt", ".rst", ".adoc", "":
		return ContentTypeText
	}
	if _, ok := languageByExtension[ext]; ok {
		return ContentTypeCode
	}
	return ContentTypeText
}
