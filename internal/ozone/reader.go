package ozone

import (
	"os"

	"github.com/dreamware/ozone/internal/ozerr"
)

// ReadValueAt performs the reader path's disk step (spec.md §4.9 step 3):
// open the data file at loc.FileNum, seek to loc.StartOff, read
// loc.RecordLen() bytes, and verify both the stored key and stored value
// checksums, returning the value's raw Daticle bytes.
func ReadValueAt(zoneDir ZoneDir, loc FileLocation, csum Checksummer) ([]byte, error) {
	f, err := os.Open(zoneDir.DataPath(loc.FileNum))
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "opening data file for read")
	}
	defer f.Close()

	buf := make([]byte, loc.RecordLen())
	if _, err := f.ReadAt(buf, loc.StartOff); err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "reading record region")
	}

	_, afterKey, err := DecodeStoredKey(buf, csum)
	if err != nil {
		return nil, err
	}
	valueBytes, _, err := DecodeStoredValue(afterKey, csum)
	if err != nil {
		return nil, err
	}
	return valueBytes, nil
}

// ReadFromLiveFile reads a record from lf if it is still the live file for
// loc.FileNum, avoiding a reopen of the file the writer already has open.
// Callers fall back to ReadValueAt for any other file number.
func ReadFromLiveFile(lf *LiveFile, loc FileLocation, csum Checksummer) ([]byte, error) {
	if lf.FileNum() != loc.FileNum {
		return nil, ozerr.New(ozerr.Bug, "live file number does not match location")
	}
	buf, err := lf.ReadAt(loc.StartOff, loc.RecordLen())
	if err != nil {
		return nil, err
	}
	_, afterKey, err := DecodeStoredKey(buf, csum)
	if err != nil {
		return nil, err
	}
	valueBytes, _, err := DecodeStoredValue(afterKey, csum)
	if err != nil {
		return nil, err
	}
	return valueBytes, nil
}
