// Package prompts renders the text/template prompts sent to the narrative
// writer. Templates under common/ hold shared {{define}} blocks; every other
// *.tmpl file is a prompt addressed by its path without the extension.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path"
	"strings"
	"text/template"
)

//go:embed templates
var builtin embed.FS

// Manager renders named prompts.
type Manager struct {
	set     *template.Template
	prompts map[string]bool
	intn    func(n int) int
}

// Default returns a manager over the templates compiled into the binary.
func Default() (*Manager, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// New loads the templates in fsys.
func New(fsys fs.FS) (*Manager, error) {
	m := &Manager{prompts: make(map[string]bool), intn: rand.IntN}
	m.set = template.New("").Funcs(template.FuncMap{
		"maybe": m.maybe,
		"pick":  m.pick,
	})

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && path.Ext(p) == ".tmpl" {
			files = append(files, p)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	// Shared blocks first so prompts may reference them in any order.
	for _, common := range []bool{true, false} {
		for _, f := range files {
			if strings.HasPrefix(f, "common/") != common {
				continue
			}
			if err := m.parse(fsys, f, common); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Manager) parse(fsys fs.FS, file string, common bool) error {
	src, err := fs.ReadFile(fsys, file)
	if err != nil {
		return err
	}
	t := m.set
	if !common {
		name := strings.TrimSuffix(file, ".tmpl")
		t = m.set.New(name)
		m.prompts[name] = true
	}
	if _, err := t.Parse(string(src)); err != nil {
		return fmt.Errorf("prompt template %s: %w", file, err)
	}
	return nil
}

// Render executes the named prompt with data and trims the result.
func (m *Manager) Render(name string, data any) (string, error) {
	if !m.prompts[name] {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := m.set.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// maybe returns content with the given probability in percent.
//
//	{{maybe 30 "Mention the weather."}}
func (m *Manager) maybe(percent int, content string) string {
	if percent >= 100 || (percent > 0 && m.intn(100) < percent) {
		return content
	}
	return ""
}

// pick returns one of its arguments at random, so repeated prompts vary.
//
//	{{pick "Paint a picture." "Describe the scene."}}
func (m *Manager) pick(options ...string) string {
	if len(options) == 0 {
		return ""
	}
	return options[m.intn(len(options))]
}
