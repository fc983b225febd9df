package fileset

import "fmt"

// Kind is one of the files of a dataset.
type Kind int

const (
	KindData       Kind = iota // primary record file
	KindOffsets                // fixed-size offset table
	KindIndex                  // spatial index
	KindAttributes             // auxiliary attribute file

	numKinds
)

// Kinds lists every file kind.
func Kinds() []Kind {
	return []Kind{KindData, KindOffsets, KindIndex, KindAttributes}
}

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindOffsets:
		return "offsets"
	case KindIndex:
		return "index"
	case KindAttributes:
		return "attributes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) valid() bool { return k >= 0 && k < numKinds }

// Paths maps file kinds to locations. Kinds without a path are untracked.
type Paths map[Kind]string
