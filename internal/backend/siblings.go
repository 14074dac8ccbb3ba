package backend

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/skywing/fdrlog/internal/reader"
)

var (
	reSimple = regexp.MustCompile(`^log-(\d+)\.bin$`)
	reDated  = regexp.MustCompile(`^log-(\d+)-([0-9a-zA-Z]{5})-(.{20})\.bin$`)
)

// Sibling describes one rotated log file discovered in the output
// directory.
type Sibling struct {
	Path    string
	Idx     int
	Dated   bool // matched the uuid+date pattern rather than the simple one
	Takeoff string
	Digest  uint64 // tail fingerprint at list time, see tailDigest
}

// ListSiblings enumerates files matching either rotation naming pattern
// in dir, reading each one's header just far enough to recover the
// "takeoff" field (§4.3's ordering key).
func ListSiblings(dir string) ([]Sibling, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Sibling
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var idx int
		var dated bool
		if m := reSimple.FindStringSubmatch(name); m != nil {
			idx, _ = strconv.Atoi(m[1])
		} else if m := reDated.FindStringSubmatch(name); m != nil {
			idx, _ = strconv.Atoi(m[1])
			dated = true
		} else {
			continue
		}

		path := filepath.Join(dir, name)
		takeoff := "0"
		if hdr, err := reader.ReadHeaderOnly(path); err == nil {
			if v, ok := hdr["takeoff"]; ok {
				takeoff = v
			}
		}

		digest, _ := tailDigest(path)
		out = append(out, Sibling{Path: path, Idx: idx, Dated: dated, Takeoff: takeoff, Digest: digest})
	}
	return out, nil
}

// MaxObservedIdx returns the highest idx among dir's rotated siblings, or
// -1 if there are none.
func MaxObservedIdx(dir string) (int, error) {
	siblings, err := ListSiblings(dir)
	if err != nil {
		return -1, err
	}
	max := -1
	for _, s := range siblings {
		if s.Idx > max {
			max = s.Idx
		}
	}
	return max, nil
}
