package extract

import "regexp"

// PatternRule is one explicit surface-form rule: when its regex matches a
// sentence, it proposes a relation between a subject-typed and an
// object-typed entity. SubjectGroup/ObjectGroup name the capture groups
// that anchor each role; an empty group name means any matched entity of
// that type in the sentence can fill the role.
type PatternRule struct {
	Name         string
	Regex        *regexp.Regexp
	SubjectType  string
	SubjectGroup string
	Predicate    string
	ObjectType   string
	ObjectGroup  string
}

// Fixed confidence for explicit pattern matches. Higher than any
// co-occurrence heuristic: a surface form is stronger evidence than mere
// co-presence.
const patternConfidence = 0.85

// DefaultPatternRules returns the Vietnamese football surface-form rules,
// in firing order.
func DefaultPatternRules() []PatternRule {
	return []PatternRule{
		{
			Name:         "played_for_explicit",
			Regex:        regexp.MustCompile(`(?P<player>\S+(?:\s+\S+){0,3})\s+(?:thi đấu|chơi|khoác áo)\s+(?:cho\s+)?(?:câu lạc bộ\s+)?(?P<club>\S+(?:\s+\S+){0,3})`),
			SubjectType:  "PLAYER",
			SubjectGroup: "player",
			Predicate:    "PLAYED_FOR",
			ObjectType:   "CLUB",
			ObjectGroup:  "club",
		},
		{
			Name:        "player_of_club",
			Regex:       regexp.MustCompile(`(?:cầu thủ|tiền đạo|tiền vệ|hậu vệ|thủ môn)\s+(?:của\s+)?(?P<club>\S+(?:\s+\S+){0,3})`),
			SubjectType: "PLAYER",
			Predicate:   "PLAYED_FOR",
			ObjectType:  "CLUB",
			ObjectGroup: "club",
		},
		{
			Name:        "competed_in_tournament",
			Regex:       regexp.MustCompile(`(?:tham gia|thi đấu tại|góp mặt tại)\s+(?P<competition>\S+(?:\s+\S+){0,5})`),
			SubjectType: "PLAYER",
			Predicate:   "COMPETED_IN",
			ObjectType:  "COMPETITION",
			ObjectGroup: "competition",
		},
		{
			Name:        "won_tournament",
			Regex:       regexp.MustCompile(`(?:vô địch|giành chức vô địch|đoạt|chiến thắng)\s+(?P<competition>\S+(?:\s+\S+){0,5})`),
			SubjectType: "PLAYER",
			Predicate:   "COMPETED_IN",
			ObjectType:  "COMPETITION",
			ObjectGroup: "competition",
		},
		{
			Name:         "coached_team",
			Regex:        regexp.MustCompile(`(?:huấn luyện viên|HLV)\s+(?P<coach>\S+(?:\s+\S+){0,3})\s+(?:dẫn dắt|huấn luyện)\s+(?P<team>\S+(?:\s+\S+){0,3})`),
			SubjectType:  "COACH",
			SubjectGroup: "coach",
			Predicate:    "COACHED",
			ObjectType:   "CLUB",
			ObjectGroup:  "team",
		},
		{
			Name:        "national_team_player",
			Regex:       regexp.MustCompile(`(?:khoác áo|đại diện cho|cầu thủ)\s+(?P<national_team>đội tuyển\s+\S+(?:\s+\S+){0,3})`),
			SubjectType: "PLAYER",
			Predicate:   "PLAYED_FOR_NATIONAL",
			ObjectType:  "NATIONAL_TEAM",
			ObjectGroup: "national_team",
		},
		{
			Name:         "defeated_team",
			Regex:        regexp.MustCompile(`(?P<team1>\S+(?:\s+\S+){0,3})\s+(?:đánh bại|thắng|chiến thắng)\s+(?P<team2>\S+(?:\s+\S+){0,3})`),
			SubjectType:  "CLUB",
			SubjectGroup: "team1",
			Predicate:    "DEFEATED",
			ObjectType:   "CLUB",
			ObjectGroup:  "team2",
		},
		{
			Name:        "transferred_to",
			Regex:       regexp.MustCompile(`(?:chuyển đến|chuyển sang|gia nhập)\s+(?P<club>\S+(?:\s+\S+){0,3})`),
			SubjectType: "PLAYER",
			Predicate:   "TRANSFERRED_TO",
			ObjectType:  "CLUB",
			ObjectGroup: "club",
		},
	}
}
