package deck

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed frameworks.yaml
var frameworksYAML []byte

// BaselineFrameworkID is the framework used when selection cannot decide.
const BaselineFrameworkID = "scqa"

// Framework is a named narrative structure constraining the outline's
// slide-type sequence. Selected once per generation, immutable thereafter.
type Framework struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Description   string      `json:"description" yaml:"description"`
	SlideSequence []SlideType `json:"slide_sequence" yaml:"slide_sequence"`
}

// SlideSequenceFor expands the framework template to exactly n slide types.
// Shorter requests keep the template head plus the closing slide; longer
// requests pad with content slides before the close.
func (f Framework) SlideSequenceFor(n int) []SlideType {
	seq := f.SlideSequence
	if n <= 0 || len(seq) == 0 {
		return nil
	}
	if n == len(seq) {
		out := make([]SlideType, n)
		copy(out, seq)
		return out
	}
	if n < len(seq) {
		out := make([]SlideType, 0, n)
		out = append(out, seq[:n-1]...)
		out = append(out, seq[len(seq)-1])
		return out
	}
	out := make([]SlideType, 0, n)
	out = append(out, seq[:len(seq)-1]...)
	for len(out) < n-1 {
		out = append(out, SlideContentGeneric)
	}
	out = append(out, seq[len(seq)-1])
	return out
}

type frameworkCatalog struct {
	Frameworks []Framework `yaml:"frameworks"`
}

var (
	catalogOnce sync.Once
	catalog     []Framework
	catalogByID map[string]Framework
	catalogErr  error
)

func loadCatalog() {
	catalogOnce.Do(func() {
		var c frameworkCatalog
		if err := yaml.Unmarshal(frameworksYAML, &c); err != nil {
			catalogErr = fmt.Errorf("parse frameworks.yaml: %w", err)
			return
		}
		catalog = c.Frameworks
		catalogByID = make(map[string]Framework, len(catalog))
		for _, f := range catalog {
			catalogByID[f.ID] = f
		}
		if _, ok := catalogByID[BaselineFrameworkID]; !ok {
			catalogErr = fmt.Errorf("frameworks.yaml missing baseline framework %q", BaselineFrameworkID)
		}
	})
}

// Frameworks returns the full catalog in declaration order.
func Frameworks() ([]Framework, error) {
	loadCatalog()
	if catalogErr != nil {
		return nil, catalogErr
	}
	return catalog, nil
}

// FrameworkByID looks up a framework; unknown ids report ok=false.
func FrameworkByID(id string) (Framework, bool) {
	loadCatalog()
	if catalogErr != nil {
		return Framework{}, false
	}
	f, ok := catalogByID[strings.ToLower(strings.TrimSpace(id))]
	return f, ok
}

// BaselineFramework returns the default (SCQA) framework.
func BaselineFramework() Framework {
	f, _ := FrameworkByID(BaselineFrameworkID)
	return f
}
