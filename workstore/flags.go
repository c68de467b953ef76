package workstore

// Flag tokens stored in up:nu:f:<child_id> sets. Unknown tokens are
// ignored by ParseFlags.
const (
	FlagMetadataOnly    = "mo"
	FlagSetDefaultJSON  = "sdj"
	FlagSetDefaultBuild = "sdb"
	FlagNoImageUpdate   = "niu"
)

// Flags is the decoded form of a child's pending update-flag set.
type Flags struct {
	MetadataOnly    bool
	SetDefaultJSON  bool
	SetDefaultBuild bool
	NoImageUpdate   bool
}

// ParseFlags decodes raw tokens drained for one child, ignoring any token
// it doesn't recognize.
func ParseFlags(tokens []string) Flags {
	var f Flags
	for _, t := range tokens {
		switch t {
		case FlagMetadataOnly:
			f.MetadataOnly = true
		case FlagSetDefaultJSON:
			f.SetDefaultJSON = true
		case FlagSetDefaultBuild:
			f.SetDefaultBuild = true
		case FlagNoImageUpdate:
			f.NoImageUpdate = true
		}
	}
	return f
}
