package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Names of the prompts shipped with storyflow.
const (
	GenerateStory    = "generate-story"
	GenerateSubtasks = "generate-subtasks"
)

// embeddedPrompts holds default prompts embedded in the binary.
//
//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Loader loads and renders prompt templates. Safe for concurrent use.
type Loader struct {
	dirs    []string
	funcMap template.FuncMap

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewLoader creates a prompt loader for the given project directory.
// It searches for prompts in the following order:
// 1. .storyflow/prompts/ in project
// 2. prompts/ in project
// 3. Embedded prompts in the storyflow binary
//
// An empty projectDir uses only the embedded prompts.
func NewLoader(projectDir string) *Loader {
	l := &Loader{
		cache:   make(map[string]*template.Template),
		funcMap: defaultPromptFuncMap(),
	}
	if projectDir != "" {
		l.dirs = []string{
			filepath.Join(projectDir, ".storyflow", "prompts"),
			filepath.Join(projectDir, "prompts"),
		}
	}
	return l
}

// AddSearchDir adds a directory searched before all others.
func (l *Loader) AddSearchDir(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirs = append([]string{dir}, l.dirs...)
	l.cache = make(map[string]*template.Template)
}

// AddFunc adds a custom template function.
func (l *Loader) AddFunc(name string, fn any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcMap[name] = fn
	l.cache = make(map[string]*template.Template)
}

// Load loads a prompt by name without variable substitution.
func (l *Loader) Load(name string) (string, error) {
	return l.LoadWithVars(name, nil)
}

// LoadWithVars loads and renders a prompt. vars may be a map or a struct.
func (l *Loader) LoadWithVars(name string, vars any) (string, error) {
	tmpl, err := l.getTemplate(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}

	return buf.String(), nil
}

// Exists checks if a prompt exists.
func (l *Loader) Exists(name string) bool {
	_, err := l.loadRaw(name)
	return err == nil
}

// List returns all available prompt names, sorted.
func (l *Loader) List() []string {
	prompts := make(map[string]bool)
	collect := func(entries []os.DirEntry) {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".txt") {
				prompts[strings.TrimSuffix(entry.Name(), ".txt")] = true
			}
		}
	}

	for _, dir := range l.searchDirs() {
		if entries, err := os.ReadDir(dir); err == nil {
			collect(entries)
		}
	}
	if entries, err := embeddedPrompts.ReadDir("prompts"); err == nil {
		collect(entries)
	}

	result := make([]string, 0, len(prompts))
	for name := range prompts {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func (l *Loader) searchDirs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.dirs...)
}

func (l *Loader) getTemplate(name string) (*template.Template, error) {
	l.mu.Lock()
	tmpl, ok := l.cache[name]
	l.mu.Unlock()
	if ok {
		return tmpl, nil
	}

	content, err := l.loadRaw(name)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tmpl, err = template.New(name).Funcs(l.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	l.cache[name] = tmpl
	return tmpl, nil
}

func (l *Loader) loadRaw(name string) (string, error) {
	filename := name + ".txt"

	for _, dir := range l.searchDirs() {
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err == nil {
			return string(data), nil
		}
	}

	data, err := embeddedPrompts.ReadFile("prompts/" + filename)
	if err != nil {
		return "", fmt.Errorf("prompt not found: %s", name)
	}
	return string(data), nil
}

// ClearCache clears the template cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*template.Template)
}

func defaultPromptFuncMap() template.FuncMap {
	return template.FuncMap{
		"join":    strings.Join,
		"trim":    strings.TrimSpace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"title":   cases.Title(language.English).String,
		"indent":  indentString,
		"default": defaultValue,
		"add":     func(a, b int) int { return a + b },
	}
}

func indentString(indent int, s string) string {
	if s == "" {
		return s
	}
	prefix := strings.Repeat(" ", indent)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// defaultValue returns the default if value is empty.
func defaultValue(defaultVal, value any) any {
	if value == nil {
		return defaultVal
	}
	if s, ok := value.(string); ok && s == "" {
		return defaultVal
	}
	return value
}
