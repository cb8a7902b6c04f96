package htmlstream

// group is a set of elements whose open member a start tag may close
// implicitly.
type group int

const (
	groupParagraph group = iota
	groupItem
	groupTerm
	groupSection
	groupRow
	groupCell
	groupCount
)

type groupRule struct {
	members  map[string]bool
	boundary map[string]bool
}

var groupRules = [groupCount]groupRule{
	groupParagraph: {
		members:  map[string]bool{"p": true},
		boundary: map[string]bool{"table": true, "caption": true, "td": true, "th": true, "button": true, "object": true, "template": true},
	},
	groupItem: {
		members:  map[string]bool{"li": true},
		boundary: map[string]bool{"ul": true, "ol": true, "menu": true, "table": true, "caption": true, "td": true, "th": true},
	},
	groupTerm: {
		members:  map[string]bool{"dt": true, "dd": true},
		boundary: map[string]bool{"dl": true, "table": true, "caption": true, "td": true, "th": true},
	},
	groupSection: {
		members:  map[string]bool{"thead": true, "tbody": true, "tfoot": true},
		boundary: map[string]bool{"table": true},
	},
	groupRow: {
		members:  map[string]bool{"tr": true},
		boundary: map[string]bool{"table": true, "thead": true, "tbody": true, "tfoot": true},
	},
	groupCell: {
		members:  map[string]bool{"td": true, "th": true},
		boundary: map[string]bool{"tr": true, "table": true},
	},
}

// closesParagraph lists the start tags that end an open p.
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"center": true, "details": true, "dialog": true, "dir": true,
	"div": true, "dl": true, "dd": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true,
	"hgroup": true, "hr": true, "li": true, "main": true,
	"menu": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"ul": true,
}

// closedBy maps a start tag to the groups it closes, innermost first.
var closedBy = map[string][]group{
	"li":    {groupItem},
	"dt":    {groupTerm},
	"dd":    {groupTerm},
	"tr":    {groupRow},
	"td":    {groupCell},
	"th":    {groupCell},
	"thead": {groupSection},
	"tbody": {groupSection},
	"tfoot": {groupSection},
}

// element is an open element. scope holds, per group, the stack index of
// the nearest open member reachable without crossing a boundary, or -1.
type element struct {
	name  string
	scope [groupCount]int
}

// stream tracks the open elements of one Walk.
type stream struct {
	h      Handler
	open   []element
	counts map[string]int
}

func (s *stream) push(name string) {
	el := element{name: name}
	idx := len(s.open)

	for g := group(0); g < groupCount; g++ {
		rule := groupRules[g]

		switch {
		case rule.members[name]:
			el.scope[g] = idx
		case rule.boundary[name] || idx == 0:
			el.scope[g] = -1
		default:
			el.scope[g] = s.open[idx-1].scope[g]
		}
	}

	s.open = append(s.open, el)
	s.counts[name]++
}

// closeImplied emits the end tags implied by a start tag named name.
func (s *stream) closeImplied(name string) {
	for _, g := range closedBy[name] {
		s.closeGroup(g)
	}

	if closesParagraph[name] {
		s.closeGroup(groupParagraph)
	}
}

func (s *stream) closeGroup(g group) {
	if len(s.open) == 0 {
		return
	}

	if idx := s.open[len(s.open)-1].scope[g]; idx >= 0 {
		s.popTo(idx)
	}
}

// closeTo handles an end tag: the innermost open element named name is
// closed with everything opened inside it.
func (s *stream) closeTo(name string) {
	if s.counts[name] == 0 {
		return
	}

	for i := len(s.open) - 1; i >= 0; i-- {
		if s.open[i].name == name {
			s.popTo(i)
			return
		}
	}
}

// popTo closes the elements at and above idx, innermost first.
func (s *stream) popTo(idx int) {
	for len(s.open) > idx {
		el := s.open[len(s.open)-1]
		s.open = s.open[:len(s.open)-1]
		s.counts[el.name]--
		s.h.CloseTag(el.name)
	}
}
