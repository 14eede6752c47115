// Package export dumps a subtree of the mirrored automation tree to JSON.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// UIElement is the exported shape of one element. Children is omitted for
// elements without children.
type UIElement struct {
	Name        string       `json:"Name"`
	ControlType string       `json:"ControlType"`
	Children    []*UIElement `json:"Children,omitempty"`
}

// Count returns the number of elements in the subtree.
func (e *UIElement) Count() int {
	n := 1
	for _, c := range e.Children {
		n += c.Count()
	}
	return n
}

// Scan walks the subtree rooted at n depth first, forcing a fresh load of
// every node's children before recording it. It mutates the model and must
// run on the goroutine that owns it.
func Scan(ctx context.Context, n *tree.Node) *UIElement {
	info := n.Info(ctx)
	el := &UIElement{
		Name:        info.Name,
		ControlType: info.ControlType,
	}
	n.LoadChildren(ctx, true)
	for _, c := range n.Children() {
		if ctx.Err() != nil {
			break
		}
		el.Children = append(el.Children, Scan(ctx, c))
	}
	return el
}

// Marshal renders el as indented JSON.
func Marshal(el *UIElement) ([]byte, error) {
	return json.MarshalIndent(el, "", "  ")
}

// Parse decodes an exported document.
func Parse(data []byte) (*UIElement, error) {
	var el UIElement
	if err := json.Unmarshal(data, &el); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return &el, nil
}

// invalidFilenameChars are rejected in file names on at least one of the
// supported platforms; control characters are handled separately.
const invalidFilenameChars = `"<>|:*?\/`

// SanitizeFilename replaces every character that is not allowed in a file
// name with an underscore.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || strings.ContainsRune(invalidFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
}

// Write stores el as <dir>/<name>.json with name sanitized and returns the
// path written.
func Write(dir, name string, el *UIElement) (string, error) {
	data, err := Marshal(el)
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	fileName := SanitizeFilename(name)
	if strings.TrimSpace(fileName) == "" {
		fileName = "element"
	}
	path := filepath.Join(dir, fileName+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// DefaultDir is the user's Desktop folder when it exists, the working
// directory otherwise.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		desktop := filepath.Join(home, "Desktop")
		if st, err := os.Stat(desktop); err == nil && st.IsDir() {
			return desktop
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
