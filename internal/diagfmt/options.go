package diagfmt

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color bool
	// AnonymizeLines prints "LL" instead of line numbers in the gutter, so
	// fixtures survive edits that shift lines.
	AnonymizeLines bool
	ShowNotes      bool
	ShowFixes      bool
}

// FixtureOpts is the configuration used when rendering snapshot blocks.
func FixtureOpts() PrettyOpts {
	return PrettyOpts{
		AnonymizeLines: true,
		ShowNotes:      true,
	}
}
