package simulated

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

// Definition is the on-disk description of a simulated desktop.
type Definition struct {
	// Pointer is the simulated mouse position used for hover tracking.
	Pointer *Point `yaml:"pointer,omitempty"`
	// Focus is a slash separated name path (below the root) or an element id
	// naming the element with keyboard focus.
	Focus string     `yaml:"focus,omitempty"`
	Root  ElementDef `yaml:"root"`
}

// Point is a screen coordinate.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ElementDef describes one element and its subtree.
type ElementDef struct {
	ID           string            `yaml:"id,omitempty"`
	Name         string            `yaml:"name"`
	ControlType  string            `yaml:"control_type"`
	AutomationID string            `yaml:"automation_id,omitempty"`
	ClassName    string            `yaml:"class_name,omitempty"`
	Bounds       automation.Rect   `yaml:"bounds,omitempty"`
	Enabled      *bool             `yaml:"enabled,omitempty"`
	Offscreen    bool              `yaml:"offscreen,omitempty"`
	Properties   map[string]string `yaml:"properties,omitempty"`
	Children     []ElementDef      `yaml:"children,omitempty"`
}

// Load reads a desktop definition from a YAML file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read desktop definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a desktop definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if def.Root.Name == "" {
		def.Root.Name = "Desktop"
	}
	if def.Root.ControlType == "" {
		def.Root.ControlType = "pane"
	}
	return &def, nil
}

// Marshal encodes the definition back to YAML.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// normalizeControlType turns "list_item" or "menu item" into "ListItem".
// Values already written in CamelCase are kept as they are.
func normalizeControlType(ct string) string {
	if ct == "" {
		return "Custom"
	}
	if ct != strings.ToLower(ct) && !strings.ContainsAny(ct, "_- ") {
		return ct
	}
	words := strings.FieldsFunc(ct, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	caser := cases.Title(language.English)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, "")
}

const sampleDesktop = `
pointer: {x: 110, y: 140}
focus: Untitled - Notepad/Text Editor
root:
  name: Desktop
  control_type: pane
  class_name: "#32769"
  bounds: {x: 0, y: 0, width: 1920, height: 1080}
  children:
    - name: Untitled - Notepad
      control_type: window
      class_name: Notepad
      bounds: {x: 100, y: 100, width: 800, height: 600}
      properties:
        ProcessId: "4120"
        FrameworkId: Win32
      children:
        - name: Untitled - Notepad
          control_type: title_bar
          automation_id: TitleBar
          bounds: {x: 100, y: 100, width: 800, height: 30}
          children:
            - name: Minimize
              control_type: button
              bounds: {x: 800, y: 100, width: 30, height: 30}
            - name: Close
              control_type: button
              bounds: {x: 860, y: 100, width: 30, height: 30}
        - name: Application
          control_type: menu_bar
          automation_id: MenuBar
          bounds: {x: 100, y: 130, width: 800, height: 20}
          children:
            - name: File
              control_type: menu_item
              bounds: {x: 100, y: 130, width: 40, height: 20}
            - name: Edit
              control_type: menu_item
              bounds: {x: 140, y: 130, width: 40, height: 20}
        - name: Text Editor
          control_type: document
          automation_id: "15"
          class_name: Edit
          bounds: {x: 100, y: 150, width: 800, height: 550}
          properties:
            Value: ""
            IsReadOnly: "false"
    - name: Calculator
      control_type: window
      class_name: ApplicationFrameWindow
      bounds: {x: 1000, y: 200, width: 320, height: 500}
      properties:
        ProcessId: "5532"
        FrameworkId: XAML
      children:
        - name: Display is 0
          control_type: text
          automation_id: CalculatorResults
          bounds: {x: 1000, y: 250, width: 320, height: 80}
        - name: Number pad
          control_type: group
          automation_id: NumberPad
          bounds: {x: 1000, y: 400, width: 320, height: 300}
          children:
            - name: One
              control_type: button
              automation_id: num1Button
              bounds: {x: 1000, y: 400, width: 100, height: 60}
            - name: Two
              control_type: button
              automation_id: num2Button
              bounds: {x: 1100, y: 400, width: 100, height: 60}
    - name: Taskbar
      control_type: pane
      class_name: Shell_TrayWnd
      bounds: {x: 0, y: 1040, width: 1920, height: 40}
      children:
        - name: Start
          control_type: button
          bounds: {x: 0, y: 1040, width: 48, height: 40}
`

// Sample returns the built-in demo desktop definition.
func Sample() *Definition {
	def, err := Parse([]byte(sampleDesktop))
	if err != nil {
		panic("simulated: invalid sample desktop: " + err.Error())
	}
	return def
}
