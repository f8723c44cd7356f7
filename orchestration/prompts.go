// Prompts loads named prompt templates from disk, ported from
// original_source/core/prompts.py::load_prompt, generalized to support the
// YAML front-matter each template may carry (e.g. which model tier a prompt
// expects) and the base+service concatenation codegen_node.py's
// get_codegen_prompt performs (a shared base prompt plus a per-service
// addendum).
package orchestration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptMeta is a template's optional YAML front-matter block.
type PromptMeta struct {
	Tier        string `yaml:"tier"`
	Description string `yaml:"description"`
}

// Prompt is one loaded template: its front-matter metadata plus body text.
type Prompt struct {
	Meta PromptMeta
	Body string
}

// PromptStore loads named .md templates from a directory, caching each
// after its first load.
type PromptStore struct {
	dir   string
	cache map[string]Prompt
}

// NewPromptStore builds a PromptStore rooted at dir (mirrors prompts.py's
// PROMPTS_DIR, a sibling "prompts" directory).
func NewPromptStore(dir string) *PromptStore {
	return &PromptStore{dir: dir, cache: make(map[string]Prompt)}
}

// Load reads a named prompt (without its .md extension), parsing a leading
// "---\n...\n---\n" YAML front-matter block if present.
func (s *PromptStore) Load(name string) (Prompt, error) {
	if p, ok := s.cache[name]; ok {
		return p, nil
	}

	path := filepath.Join(s.dir, name+".md")
	raw, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, fmt.Errorf("prompts: %q not found at %s: %w", name, path, err)
	}

	p := parsePrompt(string(raw))
	s.cache[name] = p
	return p, nil
}

func parsePrompt(raw string) Prompt {
	const delim = "---\n"
	if !strings.HasPrefix(raw, delim) {
		return Prompt{Body: raw}
	}
	rest := raw[len(delim):]
	end := strings.Index(rest, delim)
	if end < 0 {
		return Prompt{Body: raw}
	}

	var meta PromptMeta
	_ = yaml.Unmarshal([]byte(rest[:end]), &meta)
	body := rest[end+len(delim):]
	return Prompt{Meta: meta, Body: strings.TrimLeft(body, "\n")}
}

// CodeGenPrompt concatenates the shared codegen base template with a
// per-service addendum, ported from codegen_node.py's
// load_codegen_prompt/get_codegen_prompt base+service assembly.
func (s *PromptStore) CodeGenPrompt(service string) (string, error) {
	base, err := s.Load("codegen_base")
	if err != nil {
		return "", err
	}
	addendum, err := s.Load("codegen_" + service)
	if err != nil {
		// Not every service has its own addendum; the base prompt alone is
		// valid, matching get_codegen_prompt's tolerance for a missing
		// service-specific file.
		return base.Body, nil
	}
	return base.Body + "\n\n" + addendum.Body, nil
}
