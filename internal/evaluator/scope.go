package evaluator

import (
	"strings"

	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
)

// InScope reports whether a resource falls under a policy's scope. Empty
// selector lists match everything; exclusions always win over inclusion.
func InScope(s policy.Scope, r *resource.Resource) bool {
	if !matchesList(s.Environments, r.Environment()) {
		return false
	}
	if !matchesList(s.ResourceTypes, r.Type) {
		return false
	}
	if !matchesList(s.Providers, r.Provider) {
		return false
	}
	for _, ex := range s.Exclusions {
		if excluded(ex, r) {
			return false
		}
	}
	return true
}

func matchesList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func excluded(ex policy.Exclusion, r *resource.Resource) bool {
	if ex.Tag != "" {
		key, want, _ := strings.Cut(ex.Tag, "=")
		got, ok := r.Tag(key)
		return ok && got == want
	}
	if ex.Name != "" {
		return globMatch(ex.Name, r.Name)
	}
	return false
}

// globMatch matches an anchored, case-sensitive pattern where '*' is the only
// wildcard and matches any run of characters including none.
func globMatch(pattern, name string) bool {
	segs := strings.Split(pattern, "*")
	if len(segs) == 1 {
		return pattern == name
	}

	if !strings.HasPrefix(name, segs[0]) {
		return false
	}
	name = name[len(segs[0]):]

	last := segs[len(segs)-1]
	if !strings.HasSuffix(name, last) {
		return false
	}
	name = name[:len(name)-len(last)]

	for _, seg := range segs[1 : len(segs)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(name, seg)
		if idx < 0 {
			return false
		}
		name = name[idx+len(seg):]
	}
	return true
}
