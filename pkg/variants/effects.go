package variants

import (
	"sort"
	"strings"
)

var lgdEffects = []string{
	"frame-shift", "nonsense", "splice-site", "no-frame-shift-newStop",
}

var nonsynonymousEffects = append(append([]string(nil), lgdEffects...),
	"missense", "no-frame-shift", "noStart", "noEnd",
)

// EffectGroups maps group names to the effect types they stand for
var EffectGroups = map[string][]string{
	"lgds":          lgdEffects,
	"nonsynonymous": nonsynonymousEffects,
	"coding": append(append([]string(nil), nonsynonymousEffects...),
		"synonymous", "coding_unknown",
	),
	"noncoding": {
		"non-coding", "intron", "intergenic", "3'UTR", "5'UTR",
		"3'UTR-intron", "5'UTR-intron", "non-coding-intron", "upstream", "downstream",
	},
	"cnvs": {"CNV+", "CNV-"},
}

// ExpandEffectTypes replaces group names (LGDs, nonsynonymous, coding,
// noncoding, CNVs) by their members. The result is sorted and free of
// duplicates.
func ExpandEffectTypes(effectTypes []string) []string {
	seen := make(map[string]bool)
	for _, et := range effectTypes {
		et = strings.TrimSpace(et)
		if et == "" {
			continue
		}
		if group, ok := EffectGroups[strings.ToLower(et)]; ok {
			for _, g := range group {
				seen[g] = true
			}
			continue
		}
		seen[et] = true
	}
	out := make([]string, 0, len(seen))
	for et := range seen {
		out = append(out, et)
	}
	sort.Strings(out)
	return out
}
