package pipeline

import "strings"

// DefaultDocumentaryTerms はドキュメンタリー判定に使う既定の語句。
var DefaultDocumentaryTerms = []string{
	"documentary", "docu", "non-fiction", "true story", "biography", "investigative",
}

// Classifier はテキストがドキュメンタリーを示すかを語句の部分一致で判定する。
type Classifier struct {
	terms []string
}

// NewClassifier は語句リストからClassifierを生成する。
// 語句は小文字化され、空の語句は無視される。
func NewClassifier(terms []string) *Classifier {
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	return &Classifier{terms: normalized}
}

// IsDocumentary はtextsのいずれかが語句のいずれかを含む場合にtrueを返す。大文字小文字は区別しない。
func (c *Classifier) IsDocumentary(texts ...string) bool {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, term := range c.terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

// IsDocumentary は語句リストを指定して判定する。
func IsDocumentary(terms []string, texts ...string) bool {
	return NewClassifier(terms).IsDocumentary(texts...)
}
