package sync

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/syncforge/themesync/internal/board"
)

// GlobalGroup is the display group for board-wide templates.
const GlobalGroup = "Global Templates"

const globalPrefix = "global_"

// staticGroups maps well-known template prefixes to their display groups.
// These mirror the board's stock grouping and take precedence over the
// dynamic table.
var staticGroups = map[string]string{
	"index":        "Index Page",
	"forumdisplay": "Forum Display",
	"showthread":   "Show Thread",
	"forumbit":     "Forum Bit",
	"postbit":      "Post Bit",
	"member":       "Member",
	"usercp":       "User Control Panel",
	"modcp":        "Moderator Control Panel",
	"private":      "Private Messages",
	"calendar":     "Calendar",
	"search":       "Search",
	"polls":        "Polls",
	"nav":          "Navigation",
	"error":        "Error Messages",
}

// groupSource is the read-only collaborator the classifier loads its dynamic
// prefix table from.
type groupSource interface {
	TemplateGroups(ctx context.Context) ([]*board.TemplateGroup, error)
}

// groupStrategy returns a display group for a template, or false to let the
// next strategy try.
type groupStrategy func(name string, sid int64) (string, bool)

// Classifier assigns a display group to a template name. Strategies are
// evaluated in order with first-success short-circuit: global marker, static
// prefix table, the board's own templategroups table (loaded once and cached
// for the classifier's lifetime), then a title-cased prefix fallback.
// GroupFor never fails.
type Classifier struct {
	source groupSource

	mu      sync.Mutex
	loaded  bool
	dynamic map[string]string
}

// NewClassifier creates a classifier backed by the given group source.
func NewClassifier(source groupSource) *Classifier {
	return &Classifier{source: source}
}

// GroupFor returns the display group for a template name. sid is the
// template's set marker.
func (c *Classifier) GroupFor(ctx context.Context, name string, sid int64) string {
	strategies := []groupStrategy{
		globalStrategy,
		staticStrategy,
		func(name string, _ int64) (string, bool) { return c.dynamicStrategy(ctx, name) },
	}

	for _, strategy := range strategies {
		if group, ok := strategy(name, sid); ok {
			return group
		}
	}

	return fallbackGroup(name)
}

// Invalidate drops the cached dynamic table so the next lookup reloads it.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.dynamic = nil
}

func globalStrategy(name string, sid int64) (string, bool) {
	if sid == board.GlobalTemplateSet && strings.HasPrefix(name, globalPrefix) {
		return GlobalGroup, true
	}
	return "", false
}

func staticStrategy(name string, _ int64) (string, bool) {
	group, ok := staticGroups[prefixOf(name)]
	return group, ok
}

func (c *Classifier) dynamicStrategy(ctx context.Context, name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.dynamic = make(map[string]string)
		if c.source != nil {
			groups, err := c.source.TemplateGroups(ctx)
			if err != nil {
				slog.Warn("template groups unavailable, using fallback grouping", "error", err)
			}
			for _, g := range groups {
				c.dynamic[g.Prefix] = g.Title
			}
		}
		c.loaded = true
	}

	group, ok := c.dynamic[prefixOf(name)]
	return group, ok
}

func fallbackGroup(name string) string {
	return titleCase(prefixOf(name))
}

func prefixOf(name string) string {
	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx]
	}
	return name
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
