package form

import "strings"

// Branch selects one of the three mutually exclusive proceeding steps.
type Branch string

const (
	BranchCourt     Branch = "court"
	BranchAgreement Branch = "agreement"
	BranchOther     Branch = "other"
)

// ClassifyBranch maps a settlement basis to its branch. ok is false for an
// empty basis, which has to be asked again.
func ClassifyBranch(basis string) (b Branch, ok bool) {
	switch strings.TrimSpace(basis) {
	case "":
		return "", false
	case "zabezpieczenie", "wyrok", "ugoda-sad":
		return BranchCourt, true
	case "mediacja", "prywatne":
		return BranchAgreement, true
	default:
		return BranchOther, true
	}
}

// ParseBranch accepts only the three known tags.
func ParseBranch(s string) (Branch, bool) {
	switch b := Branch(s); b {
	case BranchCourt, BranchAgreement, BranchOther:
		return b, true
	}
	return "", false
}

// Step returns the proceeding step of the branch.
func (b Branch) Step() StepID {
	switch b {
	case BranchCourt:
		return StepPostepowanieSadowe
	case BranchAgreement:
		return StepPostepowaniePorozumienie
	case BranchOther:
		return StepPostepowanieInne
	}
	return ""
}

// DispatchBranch returns the step that follows the income step: the cached
// branch's step, or the settlement-basis step when no valid branch is cached.
func DispatchBranch(d FormData) StepID {
	if b, ok := ParseBranch(d.String(FieldWariant)); ok {
		return b.Step()
	}
	return StepPodstawa
}

// StaleFields lists the answers that stop applying when the cached branch
// changes from prev to next. Nothing is stale when prev was never set.
func StaleFields(prev, next Branch) []string {
	if prev == next {
		return nil
	}
	if _, ok := ParseBranch(string(prev)); !ok {
		return nil
	}
	s, ok := Lookup(prev.Step())
	if !ok {
		return nil
	}
	return s.Fields
}
