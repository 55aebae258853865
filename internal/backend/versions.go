package backend

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var (
	versionSep = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	nameSep    = regexp.MustCompile(`[_\-\s]+`)
)

// versionKey splits a version on non-word runs and reads the digits of each
// part, so "v1.10" sorts above "v1.9" and non-numeric parts count as zero.
func versionKey(v string) []int {
	parts := versionSep.Split(v, -1)
	key := make([]int, len(parts))
	for i, p := range parts {
		var digits strings.Builder
		digits.WriteByte('0')
		for _, r := range p {
			if unicode.IsDigit(r) {
				digits.WriteRune(r)
			}
		}
		n, err := strconv.Atoi(digits.String())
		if err != nil {
			n = 0
		}
		key[i] = n
	}
	return key
}

func compareKeys(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// SortVersions orders versions newest first.
func SortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return compareKeys(versionKey(versions[i]), versionKey(versions[j])) > 0
	})
}

// GroupSystems turns (system, version) pairs into system to versions, each
// list sorted newest first.
func GroupSystems(pairs [][2]string) map[string][]string {
	out := make(map[string][]string)
	for _, p := range pairs {
		out[p[0]] = append(out[p[0]], p[1])
	}
	for _, vs := range out {
		SortVersions(vs)
	}
	return out
}

// Latest returns the newest version of a system.
func Latest(systems map[string][]string, system string) (string, bool) {
	vs := systems[system]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// DisplayName is the group name shown for a legend item: label, else
// abbreviation, else "Unknown", with each word capitalised.
func DisplayName(label, abbreviation string) string {
	name := label
	if name == "" {
		name = abbreviation
	}
	if name == "" {
		name = "Unknown"
	}

	words := nameSep.Split(name, -1)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
