package featureflag

// FeatureFlag is the set of flags enabled on a server. The zero value is a
// valid empty set.
type FeatureFlag map[Flag]struct{}

// New builds a flag set from the raw flag names given on the command line.
func New(flags []string) FeatureFlag {
	set := make(FeatureFlag, len(flags))
	for _, f := range flags {
		set[Flag(f)] = struct{}{}
	}
	return set
}

// IfSet runs do when the flag is enabled.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if _, ok := f[flag]; !ok {
		return
	}
	do()
}

// IfNotSet runs do when the flag is not enabled.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if _, ok := f[flag]; ok {
		return
	}
	do()
}
