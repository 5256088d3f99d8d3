package definitions

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Definition is a loaded definition file.
type Definition struct {
	Ref

	// Description is the short description from front matter (markdown) or the
	// top-level "description" field (JSON agents). May be empty.
	Description string

	// Body is the renderable text: the markdown with any front matter removed,
	// or the raw JSON document.
	Body string
}

// frontMatter holds the fields read from a markdown definition header.
type frontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Load reads and parses the file behind ref.
//
// Parameters:
//   - ref: A ref returned by Resolve, ListAll or TemplatePaths.Find
//
// Returns:
//   - Definition: The parsed definition
//   - error: Any read error
func Load(ref Ref) (Definition, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return Definition{}, fmt.Errorf("read %s: %w", ref.Path, err)
	}

	def := Definition{Ref: ref}
	if filepath.Ext(ref.Path) == ".json" {
		def.Body = string(data)
		if gjson.ValidBytes(data) {
			def.Description = gjson.GetBytes(data, "description").String()
		}
		return def, nil
	}

	meta, body := splitFrontMatter(data)
	def.Description = meta.Description
	def.Body = string(body)
	return def, nil
}

// Describe returns the description of ref, or "" if it cannot be read.
func Describe(ref Ref) string {
	def, err := Load(ref)
	if err != nil {
		return ""
	}
	return def.Description
}

// splitFrontMatter separates a leading "---" YAML block from the markdown body.
// Content whose header is not valid YAML is returned whole.
func splitFrontMatter(data []byte) (frontMatter, []byte) {
	var meta frontMatter

	rest, ok := cutDelimiterLine(data)
	if !ok {
		return meta, data
	}

	var header []byte
	for len(rest) > 0 {
		line, next, _ := bytes.Cut(rest, []byte("\n"))
		if string(bytes.TrimRight(line, "\r")) == "---" {
			if err := yaml.Unmarshal(header, &meta); err != nil {
				return frontMatter{}, data
			}
			return meta, bytes.TrimLeft(next, "\r\n")
		}
		header = append(header, line...)
		header = append(header, '\n')
		rest = next
	}

	// Unterminated header.
	return frontMatter{}, data
}

// cutDelimiterLine strips an opening "---" line.
func cutDelimiterLine(data []byte) ([]byte, bool) {
	for _, prefix := range []string{"---\n", "---\r\n"} {
		if rest, ok := bytes.CutPrefix(data, []byte(prefix)); ok {
			return rest, true
		}
	}
	return data, false
}
