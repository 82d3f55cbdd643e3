package preview

import "strings"

// DefaultDirective opts a page into client-side execution.
const DefaultDirective = `"use client";`

// Annotator rewrites page source before it is handed to the sandbox.
type Annotator interface {
	Annotate(src string) string
}

// HookAnnotator prepends the client directive when the source mentions any
// of the interactive React hooks. It is a substring scan, so a hook name
// inside a comment or string also triggers it.
type HookAnnotator struct {
	Directive string
	Hooks     []string
}

func NewHookAnnotator(directive string) *HookAnnotator {
	if directive == "" {
		directive = DefaultDirective
	}
	return &HookAnnotator{
		Directive: directive,
		Hooks:     []string{"useState", "useEffect", "useRef"},
	}
}

func (a *HookAnnotator) NeedsClient(src string) bool {
	for _, hook := range a.Hooks {
		if strings.Contains(src, hook) {
			return true
		}
	}
	return false
}

func (a *HookAnnotator) Annotate(src string) string {
	if !a.NeedsClient(src) {
		return src
	}
	return a.Directive + "\n" + src
}
