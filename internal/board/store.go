package board

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a named set, theme or entity does not exist.
var ErrNotFound = errors.New("board: not found")

// Store reads and writes template and stylesheet rows in the board's
// database. The schema is owned by the board application; the store only
// assumes the tables it queries.
type Store struct {
	db  *sqlx.DB
	now func() int64
}

// NewStore wraps an open board database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		now: func() int64 { return time.Now().Unix() },
	}
}

// TemplateSetByName resolves a template set by its title.
func (s *Store) TemplateSetByName(ctx context.Context, title string) (*TemplateSet, error) {
	var set TemplateSet
	err := s.db.GetContext(ctx, &set, "SELECT sid, title FROM templatesets WHERE title = ?", title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template set %q: %w", title, ErrNotFound)
		}
		return nil, fmt.Errorf("query template set %q: %w", title, err)
	}
	return &set, nil
}

// TemplatesForSet returns the union of master templates and templates
// specific to the given set, de-duplicated by title with set-specific rows
// taking precedence.
func (s *Store) TemplatesForSet(ctx context.Context, sid int64) ([]*Template, error) {
	var rows []*Template
	err := s.db.SelectContext(ctx, &rows,
		"SELECT tid, title, template, sid, version, dateline FROM templates WHERE sid IN (?, ?) ORDER BY title",
		MasterTemplateSet, sid)
	if err != nil {
		return nil, fmt.Errorf("query templates for set %d: %w", sid, err)
	}

	byTitle := make(map[string]*Template, len(rows))
	for _, t := range rows {
		existing, ok := byTitle[t.Title]
		if !ok || existing.SID != sid {
			byTitle[t.Title] = t
		}
	}

	merged := make([]*Template, 0, len(byTitle))
	for _, t := range rows {
		if byTitle[t.Title] == t {
			merged = append(merged, t)
		}
	}
	return merged, nil
}

// TemplateByTitle fetches a single template by title within one set.
func (s *Store) TemplateByTitle(ctx context.Context, title string, sid int64) (*Template, error) {
	var t Template
	err := s.db.GetContext(ctx, &t,
		"SELECT tid, title, template, sid, version, dateline FROM templates WHERE title = ? AND sid = ?", title, sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %q in set %d: %w", title, sid, ErrNotFound)
		}
		return nil, fmt.Errorf("query template %q: %w", title, err)
	}
	return &t, nil
}

// InsertTemplate creates a new template row and returns it with tid and
// dateline populated.
func (s *Store) InsertTemplate(ctx context.Context, title, content, ver string, sid int64) (*Template, error) {
	t := &Template{
		Title:    title,
		Template: content,
		SID:      sid,
		Version:  ver,
		Dateline: s.now(),
	}
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO templates (title, template, sid, version, dateline)
		 VALUES (:title, :template, :sid, :version, :dateline)`, t)
	if err != nil {
		return nil, fmt.Errorf("insert template %q: %w", title, err)
	}
	t.TID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert template %q: %w", title, err)
	}
	return t, nil
}

// UpdateTemplate rewrites the content of an existing template and bumps its
// dateline. Returns the new dateline.
func (s *Store) UpdateTemplate(ctx context.Context, tid int64, content string) (int64, error) {
	dateline := s.now()
	_, err := s.db.ExecContext(ctx,
		"UPDATE templates SET template = ?, dateline = ? WHERE tid = ?", content, dateline, tid)
	if err != nil {
		return 0, fmt.Errorf("update template %d: %w", tid, err)
	}
	return dateline, nil
}

// TemplateGroups returns the board's prefix-to-group table.
func (s *Store) TemplateGroups(ctx context.Context) ([]*TemplateGroup, error) {
	var groups []*TemplateGroup
	err := s.db.SelectContext(ctx, &groups, "SELECT gid, prefix, title FROM templategroups")
	if err != nil {
		return nil, fmt.Errorf("query template groups: %w", err)
	}
	return groups, nil
}

// ThemeByName resolves a theme by name.
func (s *Store) ThemeByName(ctx context.Context, name string) (*Theme, error) {
	var th Theme
	err := s.db.GetContext(ctx, &th, "SELECT tid, name, pid FROM themes WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("theme %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("query theme %q: %w", name, err)
	}
	return &th, nil
}

// ThemeByID resolves a theme by id. Used when walking the parent chain.
func (s *Store) ThemeByID(ctx context.Context, tid int64) (*Theme, error) {
	var th Theme
	err := s.db.GetContext(ctx, &th, "SELECT tid, name, pid FROM themes WHERE tid = ?", tid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("theme %d: %w", tid, ErrNotFound)
		}
		return nil, fmt.Errorf("query theme %d: %w", tid, err)
	}
	return &th, nil
}

// StylesheetsForTheme returns the stylesheets directly owned by one theme.
func (s *Store) StylesheetsForTheme(ctx context.Context, tid int64) ([]*Stylesheet, error) {
	var sheets []*Stylesheet
	err := s.db.SelectContext(ctx, &sheets,
		"SELECT sid, name, tid, stylesheet, attachedto, lastmodified FROM themestylesheets WHERE tid = ? ORDER BY name", tid)
	if err != nil {
		return nil, fmt.Errorf("query stylesheets for theme %d: %w", tid, err)
	}
	return sheets, nil
}

// StylesheetByName fetches a stylesheet directly owned by one theme.
func (s *Store) StylesheetByName(ctx context.Context, tid int64, name string) (*Stylesheet, error) {
	var sheet Stylesheet
	err := s.db.GetContext(ctx, &sheet,
		"SELECT sid, name, tid, stylesheet, attachedto, lastmodified FROM themestylesheets WHERE tid = ? AND name = ?", tid, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stylesheet %q in theme %d: %w", name, tid, ErrNotFound)
		}
		return nil, fmt.Errorf("query stylesheet %q: %w", name, err)
	}
	return &sheet, nil
}

// ResolveStylesheets walks the theme's parent chain and returns the
// effective stylesheet per name, child overrides taking precedence over
// ancestors. The walk stops when a theme has no parent.
func (s *Store) ResolveStylesheets(ctx context.Context, theme *Theme) (map[string]*Stylesheet, error) {
	resolved := make(map[string]*Stylesheet)
	seen := make(map[int64]bool)

	current := theme
	for current != nil {
		if seen[current.TID] {
			return nil, fmt.Errorf("theme %d: inheritance cycle", current.TID)
		}
		seen[current.TID] = true

		sheets, err := s.StylesheetsForTheme(ctx, current.TID)
		if err != nil {
			return nil, err
		}
		for _, sheet := range sheets {
			if _, ok := resolved[sheet.Name]; !ok {
				resolved[sheet.Name] = sheet
			}
		}

		if current.PID == 0 {
			break
		}
		parent, err := s.ThemeByID(ctx, current.PID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, err
		}
		current = parent
	}

	return resolved, nil
}

// FindInheritedStylesheet looks for a stylesheet of the given name anywhere
// in the theme's ancestry, nearest ancestor first. Returns ErrNotFound when
// no ancestor carries it.
func (s *Store) FindInheritedStylesheet(ctx context.Context, theme *Theme, name string) (*Stylesheet, error) {
	resolved, err := s.ResolveStylesheets(ctx, theme)
	if err != nil {
		return nil, err
	}
	sheet, ok := resolved[name]
	if !ok {
		return nil, fmt.Errorf("stylesheet %q in ancestry of theme %d: %w", name, theme.TID, ErrNotFound)
	}
	return sheet, nil
}

// InsertStylesheet creates a new stylesheet row and returns it with sid and
// lastmodified populated.
func (s *Store) InsertStylesheet(ctx context.Context, tid int64, name, content, attachedTo string) (*Stylesheet, error) {
	sheet := &Stylesheet{
		Name:         name,
		ThemeID:      tid,
		Stylesheet:   content,
		AttachedTo:   attachedTo,
		LastModified: s.now(),
	}
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO themestylesheets (name, tid, stylesheet, attachedto, lastmodified)
		 VALUES (:name, :tid, :stylesheet, :attachedto, :lastmodified)`, sheet)
	if err != nil {
		return nil, fmt.Errorf("insert stylesheet %q: %w", name, err)
	}
	sheet.SID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert stylesheet %q: %w", name, err)
	}
	return sheet, nil
}

// UpdateStylesheet rewrites the content of an existing stylesheet and bumps
// its lastmodified marker. Returns the new marker.
func (s *Store) UpdateStylesheet(ctx context.Context, sid int64, content string) (int64, error) {
	lastModified := s.now()
	_, err := s.db.ExecContext(ctx,
		"UPDATE themestylesheets SET stylesheet = ?, lastmodified = ? WHERE sid = ?", content, lastModified, sid)
	if err != nil {
		return 0, fmt.Errorf("update stylesheet %d: %w", sid, err)
	}
	return lastModified, nil
}
