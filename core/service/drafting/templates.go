package drafting

import (
	"strings"

	"draft_server/core/domain"
)

// maxMatchedTemplates caps how many templates are handed to the
// generation engine per email.
const maxMatchedTemplates = 3

// MatchTemplates selects the templates whose triggers appear in the
// email. Matching is case-insensitive substring containment against
// subject and body; triggers are a comma-separated list. Input order is
// preserved, so with a created_at DESC store the newest matches win the
// cap.
func MatchTemplates(templates []*domain.ReplyTemplate, subject, body string) []*domain.ReplyTemplate {
	if len(templates) == 0 {
		return nil
	}

	haystack := strings.ToLower(subject) + "\n" + strings.ToLower(body)

	var matched []*domain.ReplyTemplate
	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}
		if matchesTriggers(tpl.Triggers, haystack) {
			matched = append(matched, tpl)
			if len(matched) == maxMatchedTemplates {
				break
			}
		}
	}
	return matched
}

func matchesTriggers(triggers, haystack string) bool {
	for _, raw := range strings.Split(triggers, ",") {
		trigger := strings.ToLower(strings.TrimSpace(raw))
		if trigger == "" {
			continue
		}
		if strings.Contains(haystack, trigger) {
			return true
		}
	}
	return false
}
