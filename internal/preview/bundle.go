package preview

import (
	"errors"
	"strings"
)

const (
	EntryPath          = "pages/index.js"
	StylesPath         = "styles.css"
	TailwindConfigPath = "tailwind.config.js"
	PostCSSConfigPath  = "postcss.config.js"

	DefaultTemplate = "nextjs"
)

var (
	ErrEmptyEntry    = errors.New("bundle entry point is empty")
	ErrInvalidBundle = errors.New("bundle is missing required files")
)

type Options struct {
	AutoRun    bool `json:"autorun"`
	AutoReload bool `json:"autoReload"`
}

// Bundle is everything the sandbox needs to compile and run one page.
type Bundle struct {
	Template     string            `json:"template"`
	Files        map[string]string `json:"files"`
	Dependencies map[string]string `json:"dependencies"`
	Options      Options           `json:"options"`
	Placeholder  bool              `json:"placeholder"`
}

// Entry returns the page source.
func (b Bundle) Entry() string {
	return b.Files[EntryPath]
}

// Validate checks that the fixed project files and the entry point are present.
func (b Bundle) Validate() error {
	for _, path := range []string{EntryPath, StylesPath, TailwindConfigPath, PostCSSConfigPath} {
		if _, ok := b.Files[path]; !ok {
			return ErrInvalidBundle
		}
	}
	if strings.TrimSpace(b.Entry()) == "" {
		return ErrEmptyEntry
	}
	return nil
}

type AssembleOptions struct {
	Template     string
	Dependencies map[string]string
	Options      Options
}

// Assemble builds the virtual project around entry.
func Assemble(entry string, opts AssembleOptions) (Bundle, error) {
	if strings.TrimSpace(entry) == "" {
		return Bundle{}, ErrEmptyEntry
	}

	template := opts.Template
	if template == "" {
		template = DefaultTemplate
	}
	deps := opts.Dependencies
	if len(deps) == 0 {
		deps = defaultDependencies
	}

	return Bundle{
		Template: template,
		Files: map[string]string{
			EntryPath:          entry,
			StylesPath:         stylesheet,
			TailwindConfigPath: tailwindConfig,
			PostCSSConfigPath:  postcssConfig,
		},
		Dependencies: copyMap(deps),
		Options:      opts.Options,
	}, nil
}
