package ozone

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/ozerr"
)

// ZoneDir is the filesystem directory owned exclusively by one zone
// (spec.md §3.2). Files are numbered monotonically; for file number n there
// is a data file "n.dat" and an index file "n.idx".
type ZoneDir struct {
	Zone bot.ZoneInd
	Path string
}

// NewZoneDir derives the directory path for zone under root and ensures it
// exists.
func NewZoneDir(root string, zone bot.ZoneInd) (ZoneDir, error) {
	path := filepath.Join(root, fmt.Sprintf("zone-%d", int(zone)))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return ZoneDir{}, ozerr.Wrap(ozerr.IO, err, "creating zone directory")
	}
	return ZoneDir{Zone: zone, Path: path}, nil
}

// DataPath returns the path of the data file for fileNum.
func (z ZoneDir) DataPath(fileNum int64) string {
	return filepath.Join(z.Path, fmt.Sprintf("%d.dat", fileNum))
}

// IndexPath returns the path of the index file for fileNum.
func (z ZoneDir) IndexPath(fileNum int64) string {
	return filepath.Join(z.Path, fmt.Sprintf("%d.idx", fileNum))
}

// GCPath returns the path of the temporary compaction output file for
// fileNum (spec.md §4.10 step 1: "a temporary .gc file").
func (z ZoneDir) GCPath(fileNum int64) string {
	return filepath.Join(z.Path, fmt.Sprintf("%d.gc", fileNum))
}

// ListFileNums scans the directory for "<n>.dat" entries and returns their
// numbers in ascending order, used by Init to discover what to scan.
func (z ZoneDir) ListFileNums() ([]int64, error) {
	entries, err := os.ReadDir(z.Path)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "reading zone directory")
	}
	var nums []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".dat") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(name, ".dat"), 10, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sortInt64s(nums)
	return nums, nil
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
