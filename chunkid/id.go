// Package chunkid parses and formats chunk identifiers and exposes the
// static parent/child layer maps loaded from the on-disk map files.
package chunkid

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Layer sizes: the fixed number of chunks at each layer, coarsest first.
const (
	L0Size = 87
	L1Size = 7571
	L2Size = 34998
)

// ErrInvalidID is returned by Parse for a malformed chunk id string.
var ErrInvalidID = errors.New("invalid chunk id")

// ID is the parsed form of a chunk identifier `[l]<idl>_<idr>`.
type ID struct {
	Layer int
	Index uint32
	IsLOD bool
}

// Parse accepts both the LOD-flagged and plain textual forms and preserves
// the flag. Both halves must be lowercase hexadecimal.
func Parse(s string) (ID, error) {
	isLOD := false
	if strings.HasPrefix(s, "l") {
		isLOD = true
		s = s[1:]
	}
	idl, idr, ok := strings.Cut(s, "_")
	if !ok || idl == "" || idr == "" {
		return ID{}, errors.Wrapf(ErrInvalidID, "%q", s)
	}
	layer, err := parseHex32(idl)
	if err != nil {
		return ID{}, errors.Wrapf(ErrInvalidID, "%q: layer: %v", s, err)
	}
	index, err := parseHex32(idr)
	if err != nil {
		return ID{}, errors.Wrapf(ErrInvalidID, "%q: index: %v", s, err)
	}
	return ID{Layer: int(layer), Index: index, IsLOD: isLOD}, nil
}

func parseHex32(s string) (uint32, error) {
	for _, c := range s {
		if !isLowerHex(c) {
			return 0, errors.Errorf("non-hex character %q", c)
		}
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func isLowerHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// Make formats an ID back into its textual form: lowercase hex, no
// padding, underscore separator, optional leading 'l'.
func Make(layer int, index uint32, isLOD bool) string {
	var b strings.Builder
	if isLOD {
		b.WriteByte('l')
	}
	b.WriteString(strconv.FormatInt(int64(layer), 16))
	b.WriteByte('_')
	b.WriteString(strconv.FormatUint(uint64(index), 16))
	return b.String()
}

// String renders the ID in its canonical textual form.
func (id ID) String() string { return Make(id.Layer, id.Index, id.IsLOD) }
