package classifier

import (
	"regexp"
	"strings"
)

// Classification es el resultado completo para un mercado.
type Classification struct {
	ShouldCapture bool   // no es basura (nivel snapshot)
	IsGeo         bool   // entidad + acción (nivel trading)
	Cluster       string
	Reason        string
}

type keywordRule struct {
	keyword string
	rx      *regexp.Regexp
}

// Keywords es el clasificador por keywords. Es inmutable tras New y
// seguro para uso concurrente.
type Keywords struct {
	garbage         []keywordRule
	garbagePatterns []*regexp.Regexp
	wordEntities    *regexp.Regexp
}

// New compila las listas de keywords.
func New() *Keywords {
	k := &Keywords{
		garbage:         make([]keywordRule, 0, len(garbageKeywords)),
		garbagePatterns: make([]*regexp.Regexp, 0, len(garbagePatterns)),
	}
	for _, kw := range garbageKeywords {
		k.garbage = append(k.garbage, keywordRule{keyword: kw, rx: wordRegexp(kw)})
	}
	for _, p := range garbagePatterns {
		k.garbagePatterns = append(k.garbagePatterns, regexp.MustCompile(`(?i)`+p))
	}
	quoted := make([]string, len(wordEntities))
	for i, e := range wordEntities {
		quoted[i] = regexp.QuoteMeta(e)
	}
	k.wordEntities = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return k
}

// wordRegexp hace match de kw como palabra completa. Los bordes que no son
// caracteres de palabra ("disney+") no llevan \b.
func wordRegexp(kw string) *regexp.Regexp {
	expr := regexp.QuoteMeta(kw)
	if isWordByte(kw[0]) {
		expr = `\b` + expr
	}
	if isWordByte(kw[len(kw)-1]) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// Garbage indica si la pregunta es basura evidente y por qué.
func (k *Keywords) Garbage(question string) (bool, string) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return true, "empty"
	}
	for _, r := range k.garbage {
		if r.rx.MatchString(q) {
			return true, "garbage_kw:" + r.keyword
		}
	}
	for _, rx := range k.garbagePatterns {
		if rx.MatchString(q) {
			return true, "garbage_pattern"
		}
	}
	return false, ""
}

// IsGeopolitical exige entidad y acción en una pregunta que no sea basura.
func (k *Keywords) IsGeopolitical(question string) bool {
	if junk, _ := k.Garbage(question); junk {
		return false
	}
	q := strings.ToLower(question)
	return k.hasEntity(q) && containsAny(q, actions)
}

// Cluster devuelve el primer cluster con match, o "other".
func (k *Keywords) Cluster(question string) string {
	q := strings.ToLower(question)
	if q == "" {
		return ClusterOther
	}
	for _, rule := range clusterRules {
		if containsAny(q, rule.keywords) {
			return rule.name
		}
	}
	return ClusterOther
}

// Classify combina captura, geopolítica y cluster.
func (k *Keywords) Classify(question string) Classification {
	if junk, reason := k.Garbage(question); junk {
		return Classification{Cluster: ClusterOther, Reason: reason}
	}
	q := strings.ToLower(question)
	isGeo := k.hasEntity(q) && containsAny(q, actions)
	reason := "ok"
	if !isGeo {
		reason = "not_geo"
	}
	return Classification{
		ShouldCapture: true,
		IsGeo:         isGeo,
		Cluster:       k.Cluster(question),
		Reason:        reason,
	}
}

func (k *Keywords) hasEntity(q string) bool {
	return k.wordEntities.MatchString(q) || containsAny(q, substringEntities)
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
