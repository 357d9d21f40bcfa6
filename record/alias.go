package record

import "strings"

// Attribute identifies a logical attribute resolved through header
// aliases. Survey sheets phrase the same question differently
// ("성별" vs "성별이 어떻게 되나요?"), so each attribute carries an
// ordered alias list and the first non-blank match wins.
type Attribute string

const (
	AttrName      Attribute = "name"
	AttrGender    Attribute = "gender"
	AttrGrade     Attribute = "grade"
	AttrRegion    Attribute = "region"
	AttrToolUsage Attribute = "tool_usage"
)

// defaultAliases maps each logical attribute to its accepted header
// names, most specific first. The trailing-space variant of the region
// header is real: one production sheet has it.
var defaultAliases = map[Attribute][]string{
	AttrName: {
		"이름을 적어주세요",
		"이름",
		"Name",
	},
	AttrGender: {
		"성별이 어떻게 되나요?",
		"성별",
		"Gender",
	},
	AttrGrade: {
		"현재 학년이 어떻게 되나요?",
		"학년",
		"Grade",
	},
	AttrRegion: {
		"현재 거주중인 지역이 어디인가요? ",
		"현재 거주중인 지역이 어디인가요?",
		"지역",
		"Region",
	},
	AttrToolUsage: {
		"현재 사용 중인 학습 도구를 알려주세요",
		"사용하는 AI 도구",
		"사용 도구",
		"Tool",
	},
}

// Resolver maps logical attributes onto the concrete headers of one
// Dataset. Resolution happens once per fetch instead of repeating alias
// scans at every use site.
type Resolver struct {
	fields  map[Attribute]string
	aliases map[Attribute][]string
}

// NewResolver resolves every known attribute against the Dataset's
// headers. Attributes with no matching header resolve to "", and
// lookups through them return empty values.
func NewResolver(d *Dataset) *Resolver {
	return NewResolverWithAliases(d, defaultAliases)
}

// NewResolverWithAliases resolves attributes using a caller-supplied
// alias table. The first alias present in the headers wins.
func NewResolverWithAliases(d *Dataset, aliases map[Attribute][]string) *Resolver {
	headerSet := make(map[string]bool)
	if d != nil {
		for _, h := range d.Headers {
			headerSet[h] = true
		}
		for _, r := range d.Records {
			for h := range r {
				headerSet[h] = true
			}
		}
	}

	fields := make(map[Attribute]string, len(aliases))
	for attr, names := range aliases {
		for _, name := range names {
			if headerSet[name] {
				fields[attr] = name
				break
			}
		}
	}
	return &Resolver{fields: fields, aliases: aliases}
}

// Field returns the concrete header an attribute resolved to, or ""
// when no alias matched.
func (rs *Resolver) Field(attr Attribute) string {
	return rs.fields[attr]
}

// Value returns the trimmed attribute value for a Record. Records from
// merged sheets may carry the attribute under a different alias than
// the resolved one, so on a miss the resolver's own alias list is
// retried.
func (rs *Resolver) Value(r Record, attr Attribute) string {
	if field := rs.fields[attr]; field != "" {
		if v := strings.TrimSpace(r.Get(field)); v != "" {
			return v
		}
	}
	for _, name := range rs.aliases[attr] {
		if v := strings.TrimSpace(r.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// Aliases returns the default alias list for an attribute.
func Aliases(attr Attribute) []string {
	return defaultAliases[attr]
}
