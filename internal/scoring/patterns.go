package scoring

import (
	"regexp"
	"strings"

	"ThreadSentinel/internal/model"
)

// Intent phrase families. Each matching pattern counts as one hit.
var (
	problemPatterns = compileAll(
		`\bstruggl(e|es|ed|ing)\b`,
		`\b(trying|struggling) to find\b`,
		`\b(problems?|issues?) with\b`,
		`\bfrustrat(ed|ing)\b`,
		`\bcan'?t (seem to )?(find|figure out|get)\b`,
		`\bneed help\b`,
		`\bpain points?\b`,
		`\bfed up\b`,
	)
	recommendationPatterns = compileAll(
		`\brecommendations?\b`,
		`\bany (good )?(recommendations|suggestions)\b`,
		`\bsuggest(ions?)?\b`,
		`\balternatives? (to|for)\b`,
		`\b(find|need) a (good|better)\b`,
		`\bwhat (do|would) you (use|recommend)\b`,
		`\bwhich (one|tool|service) should\b`,
	)
	questionPatterns = compileAll(
		`\?`,
		`\bany\b[^.?!]*\?`,
		`\b(how|what|which|where) (do|does|can|should|is|are)\b`,
		`\bdoes anyone\b`,
		`\bis there (a|an|any)\b`,
	)
	experiencePatterns = compileAll(
		`\b(has|have) anyone (used|tried)\b`,
		`\bin my experience\b`,
		`\bwe (switched|moved|migrated)\b`,
		`\bi('ve| have) (used|tried)\b`,
		`\bworked (well|great) for\b`,
	)
)

var (
	businessContextTerms = compileTerms(
		"software", "tool", "platform", "service", "solution", "app", "crm", "saas",
		"pricing", "subscription", "integration", "automation", "workflow",
	)
	businessIndicators = compileTerms(
		"business", "company", "startup", "team", "clients", "customers", "revenue",
		"sales", "marketing", "agency", "small business", "enterprise",
	)
	qualityPhrases = compileTerms(
		"details", "specifically", "budget", "requirements", "currently using",
		"we use", "our team", "tried", "compared", "looking for",
	)
	spamPhrases = compileTerms(
		"click here", "buy now", "free money", "dm me", "check out my",
		"promo code", "giveaway", "upvote", "karma",
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

func countPatterns(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// termSet holds whole-word, case-insensitive matchers, one per distinct term.
type termSet []*regexp.Regexp

// compileTerms drops blank terms and case-insensitive duplicates.
func compileTerms(terms ...string) termSet {
	seen := make(map[string]bool, len(terms))
	out := make(termSet, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, regexp.MustCompile(`(?i)(^|[^\w])`+regexp.QuoteMeta(t)+`($|[^\w])`))
	}
	return out
}

func (ts termSet) count(text string) int {
	n := 0
	for _, re := range ts {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// profileTerms is a targeting profile compiled for one evaluation.
type profileTerms struct {
	keywords termSet
	negative termSet
	segments termSet
}

func compileProfile(p model.TargetingProfile) profileTerms {
	return profileTerms{
		keywords: compileTerms(p.Keywords...),
		negative: compileTerms(p.NegativeKeywords...),
		segments: compileTerms(p.CustomerSegments...),
	}
}
