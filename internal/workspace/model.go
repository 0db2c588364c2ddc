// Package workspace normalizes the workspace metaphors of the supported
// compositors into one comparable coordinate and computes parallax deltas
// from transitions between them.
package workspace

import (
	"fmt"
	"math/bits"
)

// Model identifies how a compositor represents "where the user is".
type Model int

const (
	// ModelGlobalNumeric is a single integer shared across all outputs
	// (Hyprland, Sway, X11/EWMH).
	ModelGlobalNumeric Model = iota
	// ModelPerOutputNumeric is an integer scoped to one output
	// (Niri, Wayfire, Hyprland with split-monitor-workspaces).
	ModelPerOutputNumeric
	// ModelTagBased is a 32-bit tag bitmask (River).
	ModelTagBased
	// ModelSetBased is a workspace-set id plus an intra-set numeric id
	// (Wayfire with the wsets plugin).
	ModelSetBased
)

func (m Model) String() string {
	switch m {
	case ModelGlobalNumeric:
		return "global_numeric"
	case ModelPerOutputNumeric:
		return "per_output_numeric"
	case ModelTagBased:
		return "tag_based"
	case ModelSetBased:
		return "set_based"
	default:
		return "unknown"
	}
}

// Context is a canonical snapshot of the current workspace position. The
// model is fixed when the adapter is detected and never changes for a given
// context; operations across mismatched models are defined to yield zero.
type Context struct {
	Model Model

	// ID is the numeric workspace id (numeric and set-based models).
	ID int

	// VisibleTags and FocusedTag carry the tag bitmask state (tag model).
	VisibleTags uint32
	FocusedTag  uint32

	// SetID is the workspace-set id (set-based model).
	SetID int
}

func (c Context) String() string {
	switch c.Model {
	case ModelGlobalNumeric, ModelPerOutputNumeric:
		return fmt.Sprintf("workspace:%d", c.ID)
	case ModelTagBased:
		return fmt.Sprintf("tags:0x%x(focus:%d)", c.VisibleTags, TagToIndex(c.FocusedTag))
	case ModelSetBased:
		return fmt.Sprintf("set:%d,ws:%d", c.SetID, c.ID)
	default:
		return "unknown"
	}
}

// TagPolicy selects which tag anchors the offset when more than one tag is
// visible at once.
type TagPolicy int

const (
	// TagPolicyFocused uses the focused tag regardless of visibility.
	TagPolicyFocused TagPolicy = iota
	// TagPolicyHighest uses the highest visible tag bit.
	TagPolicyHighest
	// TagPolicyLowest uses the lowest visible tag bit.
	TagPolicyLowest
	// TagPolicyNoParallax suppresses the offset entirely whenever either
	// side of the transition has more than one visible tag.
	TagPolicyNoParallax
)

// ParsePolicy maps a config string to a TagPolicy. Unknown values fall back
// to the focused-tag behavior.
func ParsePolicy(name string) TagPolicy {
	switch name {
	case "highest":
		return TagPolicyHighest
	case "lowest":
		return TagPolicyLowest
	case "none", "no-parallax":
		return TagPolicyNoParallax
	default:
		return TagPolicyFocused
	}
}

// Policy carries the tunable parts of the offset computation.
type Policy struct {
	MultiTag TagPolicy
}

// Equal reports whether two contexts denote the same position. Contexts of
// different models are unequal by definition.
func Equal(a, b Context) bool {
	if a.Model != b.Model {
		return false
	}
	switch a.Model {
	case ModelGlobalNumeric, ModelPerOutputNumeric:
		return a.ID == b.ID
	case ModelTagBased:
		return a.VisibleTags == b.VisibleTags
	case ModelSetBased:
		return a.SetID == b.SetID && a.ID == b.ID
	default:
		return false
	}
}

// Compare orders two contexts of the same model. Numeric models order by id,
// tag models by the index of the focused tag, set models by set id then
// intra-set id.
func Compare(a, b Context) int {
	if a.Model != b.Model {
		return int(a.Model) - int(b.Model)
	}
	switch a.Model {
	case ModelGlobalNumeric, ModelPerOutputNumeric:
		return a.ID - b.ID
	case ModelTagBased:
		return TagToIndex(a.FocusedTag) - TagToIndex(b.FocusedTag)
	case ModelSetBased:
		if a.SetID != b.SetID {
			return a.SetID - b.SetID
		}
		return a.ID - b.ID
	default:
		return 0
	}
}

// Offset computes the parallax translation for a transition between two
// contexts: the model-specific delta scaled by shiftPixels. Mismatched
// models contribute zero, as do cross-set transitions in the set model
// (Wayfire workspace sets are independent coordinate spaces, so the set
// boundary is a hard parallax reset).
func Offset(from, to Context, shiftPixels float64, policy *Policy) float64 {
	if from.Model != to.Model {
		return 0
	}

	delta := 0
	switch from.Model {
	case ModelGlobalNumeric, ModelPerOutputNumeric:
		delta = to.ID - from.ID

	case ModelTagBased:
		fromTag := from.FocusedTag
		toTag := to.FocusedTag
		if policy != nil {
			switch policy.MultiTag {
			case TagPolicyHighest:
				fromTag = highestBit(from.VisibleTags)
				toTag = highestBit(to.VisibleTags)
			case TagPolicyLowest:
				fromTag = from.VisibleTags & -from.VisibleTags
				toTag = to.VisibleTags & -to.VisibleTags
			case TagPolicyNoParallax:
				if CountTags(from.VisibleTags) > 1 || CountTags(to.VisibleTags) > 1 {
					return 0
				}
			}
		}
		delta = TagToIndex(toTag) - TagToIndex(fromTag)

	case ModelSetBased:
		if from.SetID == to.SetID {
			delta = to.ID - from.ID
		}
	}

	return float64(delta) * shiftPixels
}

// TagToIndex returns the zero-based index of the lowest set bit of a tag
// mask, or -1 for an empty mask.
func TagToIndex(mask uint32) int {
	if mask == 0 {
		return -1
	}
	return bits.TrailingZeros32(mask)
}

// IndexToTag returns the tag mask with only the given bit set, or zero for
// an out-of-range index.
func IndexToTag(index int) uint32 {
	if index < 0 || index >= 32 {
		return 0
	}
	return 1 << uint(index)
}

// CountTags returns the number of set bits in a tag mask.
func CountTags(mask uint32) int {
	return bits.OnesCount32(mask)
}

func highestBit(mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	return 1 << uint(31-bits.LeadingZeros32(mask))
}
