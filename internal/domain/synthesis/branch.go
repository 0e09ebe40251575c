package synthesis

// MetalBranch is the coarse metal group chosen by the binary stage. Each
// branch is bound to its own specific-metal stage; the two vocabularies are
// disjoint and never cross-applied.
type MetalBranch int

const (
	BranchLaZnZr MetalBranch = iota
	BranchCuAlFe
)

// BranchThreshold is the sigmoid cut-off: p ≥ 0.5 selects Cu-Al-Fe.
const BranchThreshold = 0.5

// BranchFromProbability decides the branch from the binary model's sigmoid
// output.
func BranchFromProbability(p float64) MetalBranch {
	if p >= BranchThreshold {
		return BranchCuAlFe
	}
	return BranchLaZnZr
}

func (b MetalBranch) String() string {
	if b == BranchCuAlFe {
		return "Cu-Al-Fe"
	}
	return "La-Zn-Zr"
}

// Stage returns the specific-metal stage bound to the branch.
func (b MetalBranch) Stage() Stage {
	if b == BranchCuAlFe {
		return StageMajorMetal
	}
	return StageMinorMetal
}

// Vocabulary returns the metals the branch's classifier can emit.
func (b MetalBranch) Vocabulary() []string {
	if b == BranchCuAlFe {
		return []string{"Al", "Cu", "Fe"}
	}
	return []string{"La", "Zn", "Zr"}
}

// Contains reports whether metal belongs to the branch vocabulary.
func (b MetalBranch) Contains(metal string) bool {
	for _, m := range b.Vocabulary() {
		if m == metal {
			return true
		}
	}
	return false
}

// MarshalText encodes the branch by its group label.
func (b MetalBranch) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText accepts the group labels produced by MarshalText.
func (b *MetalBranch) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Cu-Al-Fe":
		*b = BranchCuAlFe
	case "La-Zn-Zr":
		*b = BranchLaZnZr
	default:
		return &branchError{string(text)}
	}
	return nil
}

type branchError struct{ label string }

func (e *branchError) Error() string { return "unknown metal branch " + e.label }
