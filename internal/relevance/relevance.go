// Package relevance decides whether an entity mention belongs to the
// curated domain (Vietnamese football) using substring heuristics over
// fixed indicator sets. No tokenization, no scoring: any indicator hit
// is sufficient, and only the absence of every indicator fails a check.
package relevance

import "strings"

// domainIndicators are terms whose presence in a mention or its
// surrounding sentence marks it as in-domain.
var domainIndicators = []string{
	// Vietnamese places
	"việt nam", "vietnam", "hà nội", "sài gòn", "đà nẵng", "hải phòng",
	"thành phố hồ chí minh", "tp.hcm", "tphcm",

	// domestic competitions
	"v.league", "v-league", "hạng nhất", "hạng nhì", "cúp quốc gia",
	"siêu cúp", "aff cup", "sea games", "asean",

	// national sides
	"đội tuyển", "u-23", "u23", "u-22", "u22", "u-21", "u21", "u-19", "u19",

	// club surface forms
	"fc", "clb", "câu lạc bộ",
}

// knownClubs is a subset of domestic club names treated as in-domain
// even without another indicator.
var knownClubs = []string{
	"hà nội", "hoàng anh gia lai", "hagl", "bình dương", "becamex",
	"viettel", "công an hà nội", "slna", "sông lam nghệ an",
	"đà nẵng", "shb đà nẵng", "hải phòng", "thanh hóa", "nam định",
	"quảng ninh", "tp.hcm", "sài gòn", "bình định", "khánh hòa",
}

// foreignIndicators mark mentions that are clearly out of domain:
// foreign leagues, clubs, and national sides.
var foreignIndicators = []string{
	"premier league", "la liga", "serie a", "bundesliga", "ligue 1",
	"champions league", "europa league", "world cup",
	"manchester", "liverpool", "chelsea", "arsenal", "barcelona",
	"real madrid", "bayern", "juventus", "psg", "inter", "milan",
	"brazil", "argentina", "england", "spain", "germany", "france",
	"italy", "portugal", "netherlands", "belgium",
}

// Classifier is a stateless domain-relevance classifier. The zero value
// is not usable; construct with NewClassifier.
type Classifier struct {
	domain  []string
	clubs   []string
	foreign []string
}

// NewClassifier returns a classifier over the built-in indicator sets.
func NewClassifier() *Classifier {
	return &Classifier{
		domain:  domainIndicators,
		clubs:   knownClubs,
		foreign: foreignIndicators,
	}
}

// IsDomainRelated reports whether the mention text or its context
// contains any in-domain indicator or known club name.
func (c *Classifier) IsDomainRelated(text, context string) bool {
	textLower := strings.ToLower(text)
	contextLower := strings.ToLower(context)

	for _, ind := range c.domain {
		if strings.Contains(textLower, ind) || strings.Contains(contextLower, ind) {
			return true
		}
	}
	for _, club := range c.clubs {
		if strings.Contains(textLower, club) {
			return true
		}
	}
	return false
}

// IsOutOfDomain reports whether the mention text contains any foreign
// indicator. Context is deliberately not consulted: a foreign club
// named inside a domestic match report is still foreign.
func (c *Classifier) IsOutOfDomain(text string) bool {
	textLower := strings.ToLower(text)
	for _, ind := range c.foreign {
		if strings.Contains(textLower, ind) {
			return true
		}
	}
	return false
}
