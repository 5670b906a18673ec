package search

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer reduces rich answer bodies to indexable plain text.
type Sanitizer interface {
	Sanitize(body string) string
}

// PlainTextSanitizer strips every tag and decodes entities.
type PlainTextSanitizer struct {
	policy *bluemonday.Policy
}

// NewPlainTextSanitizer builds a sanitizer on bluemonday's strict policy.
func NewPlainTextSanitizer() *PlainTextSanitizer {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &PlainTextSanitizer{policy: policy}
}

func (s *PlainTextSanitizer) Sanitize(body string) string {
	stripped := s.policy.Sanitize(body)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
