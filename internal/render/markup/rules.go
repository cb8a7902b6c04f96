package markup

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lueurxax/wikirender/internal/render/htmlstream"
)

// IgnoreRules decides which subtrees are hidden, collapsed or decorative and
// must be skipped entirely. The set tracks wiki themes, so it is data.
type IgnoreRules struct {
	// Tags are always skipped.
	Tags []string `toml:"tags"`
	// Classes skip any element carrying one of them.
	Classes []string `toml:"classes"`
	// ClassSets skip elements carrying every class of a set.
	ClassSets [][]string `toml:"class_sets"`
	// TagClasses skip a tag only when it carries one of the listed classes.
	TagClasses map[string][]string `toml:"tag_classes"`
	// HideDisplayNone skips elements styled display:none.
	HideDisplayNone bool `toml:"hide_display_none"`
}

// DefaultIgnoreRules returns the minimum rule set every transcoder applies.
func DefaultIgnoreRules() IgnoreRules {
	return IgnoreRules{
		Tags:      []string{"script", "style", "noscript"},
		Classes:   []string{"noexcerpt", "mw-empty-elt", "mw-editsection", "noprint"},
		ClassSets: [][]string{{"mw-collapsible", "mw-collapsed"}},
		TagClasses: map[string][]string{
			"sup":  {"reference"},
			"span": {"smwttcontent"},
		},
		HideDisplayNone: true,
	}
}

// LoadIgnoreRules reads additional rules from a TOML file and merges them
// into the defaults. The defaults can be extended, never removed.
func LoadIgnoreRules(path string) (IgnoreRules, error) {
	var extra IgnoreRules

	if _, err := toml.DecodeFile(path, &extra); err != nil {
		return IgnoreRules{}, fmt.Errorf("decode ignore rules %s: %w", path, err)
	}

	return DefaultIgnoreRules().Merge(extra), nil
}

// Merge returns r extended with other.
func (r IgnoreRules) Merge(other IgnoreRules) IgnoreRules {
	merged := IgnoreRules{
		Tags:            append(append([]string{}, r.Tags...), other.Tags...),
		Classes:         append(append([]string{}, r.Classes...), other.Classes...),
		ClassSets:       append(append([][]string{}, r.ClassSets...), other.ClassSets...),
		TagClasses:      make(map[string][]string, len(r.TagClasses)+len(other.TagClasses)),
		HideDisplayNone: r.HideDisplayNone || other.HideDisplayNone,
	}

	for _, src := range []map[string][]string{r.TagClasses, other.TagClasses} {
		for tag, classes := range src {
			merged.TagClasses[tag] = append(merged.TagClasses[tag], classes...)
		}
	}

	return merged
}

// WithClasses returns r with extra always-ignored classes.
func (r IgnoreRules) WithClasses(classes ...string) IgnoreRules {
	return r.Merge(IgnoreRules{Classes: classes})
}

type ruleSet struct {
	tags            map[string]bool
	classes         map[string]bool
	classSets       [][]string
	tagClasses      map[string]map[string]bool
	hideDisplayNone bool
}

func compileRules(r IgnoreRules) *ruleSet {
	rs := &ruleSet{
		tags:            toSet(r.Tags),
		classes:         toSet(r.Classes),
		classSets:       r.ClassSets,
		tagClasses:      make(map[string]map[string]bool, len(r.TagClasses)),
		hideDisplayNone: r.HideDisplayNone,
	}

	for tag, classes := range r.TagClasses {
		rs.tagClasses[strings.ToLower(tag)] = toSet(classes)
	}

	return rs
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			set[item] = true
		}
	}

	return set
}

// ignores reports whether the subtree rooted at tag must be skipped.
func (rs *ruleSet) ignores(tag htmlstream.Tag) bool {
	if rs.tags[tag.Name] {
		return true
	}

	classes := tag.Classes()
	have := make(map[string]bool, len(classes))

	for _, c := range classes {
		if rs.classes[c] || rs.tagClasses[tag.Name][c] {
			return true
		}

		have[c] = true
	}

	for _, set := range rs.classSets {
		if len(set) > 0 && containsAll(have, set) {
			return true
		}
	}

	return rs.hideDisplayNone && styleValue(tag.Attrs["style"], "display") == "none"
}

func containsAll(have map[string]bool, set []string) bool {
	for _, c := range set {
		if !have[c] {
			return false
		}
	}

	return true
}

// styleValue returns the lower-cased value of prop in an inline style
// declaration, without any !important suffix. The last declaration wins.
func styleValue(style, prop string) string {
	if style == "" {
		return ""
	}

	value := ""

	for _, decl := range strings.Split(style, ";") {
		name, val, ok := strings.Cut(decl, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), prop) {
			continue
		}

		val = strings.ToLower(strings.TrimSpace(val))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		value = val
	}

	return value
}
