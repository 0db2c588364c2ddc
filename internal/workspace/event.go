package workspace

// ChangeEvent describes a workspace transition and which monitor(s) it
// affects. Adapters construct events from their native protocols; the
// Tracker consumes each event exactly once.
type ChangeEvent struct {
	Old Context
	New Context

	// Monitor names the primary output affected by the transition.
	Monitor string

	// SecondaryMonitor is set for cross-monitor transitions (a workspace
	// stolen by or moved to another output); the secondary contexts then
	// describe the state change on that output.
	SecondaryMonitor string
	SecondaryOld     Context
	SecondaryNew     Context

	// Steal marks a workspace reassigned to a different monitor than last
	// observed.
	Steal bool

	// Vertical routes the offset to the vertical axis (Niri workspace
	// activation); the default is horizontal.
	Vertical bool
}
