package board

// Reserved template set ids used by the board schema. Master holds the
// stock templates every set inherits from; Global marks templates shared
// across all sets.
const (
	MasterTemplateSet int64 = -2
	GlobalTemplateSet int64 = -1
)

// TemplateSet is a named container of templates.
type TemplateSet struct {
	SID   int64  `db:"sid"`
	Title string `db:"title"`
}

// Template is a single template row. Dateline is the board's monotonically
// increasing last-modified marker.
type Template struct {
	TID      int64  `db:"tid"`
	Title    string `db:"title"`
	Template string `db:"template"`
	SID      int64  `db:"sid"`
	Version  string `db:"version"`
	Dateline int64  `db:"dateline"`
}

// TemplateGroup maps a template title prefix to a display group.
type TemplateGroup struct {
	GID    int64  `db:"gid"`
	Prefix string `db:"prefix"`
	Title  string `db:"title"`
}

// Theme is a named stylesheet container. PID links to the parent theme for
// inheritance; 0 means no parent.
type Theme struct {
	TID  int64  `db:"tid"`
	Name string `db:"name"`
	PID  int64  `db:"pid"`
}

// Stylesheet is a single stylesheet row belonging to a theme. AttachedTo
// records which board pages the stylesheet applies to.
type Stylesheet struct {
	SID          int64  `db:"sid"`
	Name         string `db:"name"`
	ThemeID      int64  `db:"tid"`
	Stylesheet   string `db:"stylesheet"`
	AttachedTo   string `db:"attachedto"`
	LastModified int64  `db:"lastmodified"`
}
