package conversion

import (
	"strings"

	"github.com/ashita-ai/sekkei/internal/graph"
)

// Classifier decides which dependency payloads are systems or situations. Only
// those survive simplification.
type Classifier interface {
	SystemOrSituation(value any) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(value any) bool

func (f ClassifierFunc) SystemOrSituation(value any) bool { return f(value) }

// DefaultKeywords mark a plain text payload as something other than a system or
// situation.
var DefaultKeywords = []string{"problem", "intention", "solution"}

// DefaultClassifier is the KeywordClassifier over DefaultKeywords.
var DefaultClassifier = NewKeywordClassifier(DefaultKeywords...)

// KeywordClassifier treats tuples as systems or situations, rejects nil, rejects
// text containing any keyword case-insensitively, and accepts everything else.
//
// The substring test is a heuristic. A system called "problem_solver" is
// dropped, and a problem named "collision_risk" is kept as if it were a system.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier builds a classifier from keywords. Blank keywords are
// ignored; with none left the defaults apply.
func NewKeywordClassifier(keywords ...string) KeywordClassifier {
	var kw []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	if len(kw) == 0 {
		kw = append(kw, DefaultKeywords...)
	}
	return KeywordClassifier{keywords: kw}
}

// Keywords returns the lower-cased keywords.
func (k KeywordClassifier) Keywords() []string { return append([]string(nil), k.keywords...) }

func (k KeywordClassifier) SystemOrSituation(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case graph.Tuple:
		return true
	case string:
		lower := strings.ToLower(v)
		for _, kw := range k.keywords {
			if strings.Contains(lower, kw) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Simplify keeps the nodes the classifier accepts and the edges between them.
// Paths through removed nodes are not bridged.
func (c *Converter) Simplify(g *graph.Dependency) *graph.Dependency {
	return g.Subgraph(func(n graph.DepNode) bool {
		return c.classifier.SystemOrSituation(n.Value)
	})
}
