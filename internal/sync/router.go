package sync

import (
	"strings"

	"github.com/syncforge/themesync/internal/utils"
)

// Disk layout constants. These are fixed wire format, shared with external
// tooling that reads the sync root.
const (
	TemplateSetsDir = "template_sets"
	StylesDir       = "styles"
	TemplateExt     = ".html"
	StylesheetExt   = ".css"
	ManifestName    = ".sync_manifest.json"
)

// ParsePath maps a sync-root-relative path to its entity descriptor.
// Exactly two shapes are recognized:
//
//	template_sets/<set>/<group>/<name>.html
//	styles/<theme>/<name>.css
//
// Anything else yields KindUnknown. ParsePath does no I/O.
func ParsePath(relPath string) EntityDescriptor {
	segs := strings.Split(utils.NormPath(relPath), "/")

	switch {
	case len(segs) == 4 && segs[0] == TemplateSetsDir:
		name, ok := trimExt(segs[3], TemplateExt)
		if !ok || segs[1] == "" || segs[2] == "" {
			break
		}
		return EntityDescriptor{
			Kind:      KindTemplate,
			Container: segs[1],
			Group:     segs[2],
			Name:      name,
		}

	case len(segs) == 3 && segs[0] == StylesDir:
		name, ok := trimExt(segs[2], StylesheetExt)
		if !ok || segs[1] == "" {
			break
		}
		return EntityDescriptor{
			Kind:      KindStylesheet,
			Container: segs[1],
			Name:      name,
		}
	}

	return EntityDescriptor{Kind: KindUnknown}
}

// BuildPath maps a non-unknown entity descriptor back to its relative path.
// It is the left inverse of ParsePath. Returns "" for unknown descriptors.
func BuildPath(desc EntityDescriptor) string {
	switch desc.Kind {
	case KindTemplate:
		return strings.Join([]string{TemplateSetsDir, desc.Container, desc.Group, desc.Name + TemplateExt}, "/")
	case KindStylesheet:
		return strings.Join([]string{StylesDir, desc.Container, desc.Name + StylesheetExt}, "/")
	default:
		return ""
	}
}

func trimExt(base, ext string) (string, bool) {
	if !strings.HasSuffix(base, ext) {
		return "", false
	}
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		return "", false
	}
	return name, true
}
