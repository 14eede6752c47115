package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/export"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// FindByPath looks an element up by the names of its ancestors below the
// root, separated by slashes ("Calculator/Number pad/Two"). The first child
// with a matching name wins at each level. It only uses the facade and
// returns ErrElementNotFound on a miss.
func FindByPath(ctx context.Context, facade automation.Facade, path string) (automation.Element, error) {
	el := facade.Root()
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		children, err := facade.Children(ctx, el)
		if err != nil {
			return nil, fmt.Errorf("list children of %q: %w", name, err)
		}
		var next automation.Element
		for _, c := range children {
			info, err := facade.Describe(ctx, c)
			if err == nil && info.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q in %q", ErrElementNotFound, name, path)
		}
		el = next
	}
	return el, nil
}

// ScanSelected reloads and captures the selected subtree.
func (s *Session) ScanSelected(ctx context.Context) (*export.UIElement, error) {
	doc, _, err := s.scanSelected(ctx)
	return doc, err
}

func (s *Session) scanSelected(ctx context.Context) (*export.UIElement, string, error) {
	var (
		doc  *export.UIElement
		name string
	)
	err := s.Do(ctx, func(ctx context.Context, m *tree.Model) error {
		sel := m.Selected()
		if sel == nil {
			return ErrNoSelection
		}
		doc = export.Scan(ctx, sel)
		name = sel.Info(ctx).Name
		return ctx.Err()
	})
	return doc, name, err
}

// ExportSelected scans the selected subtree on the owner goroutine and
// writes it to dir, named after the selected element.
func (s *Session) ExportSelected(ctx context.Context, dir string) (string, *export.UIElement, error) {
	doc, name, err := s.scanSelected(ctx)
	if err != nil {
		return "", nil, err
	}
	path, err := export.Write(dir, name, doc)
	if err != nil {
		return "", nil, err
	}
	s.logger.WithField("path", path).WithField("elements", doc.Count()).Info("Exported subtree")
	return path, doc, nil
}
