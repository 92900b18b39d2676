package ozone

import (
	"os"
	"sync"

	"github.com/dreamware/ozone/internal/ozerr"
)

// LiveFile is the pair of open file handles (data + index) a writer bot
// appends to for one zone, plus the FileState tracking that data file's
// regions (spec.md §4.6, §4.8). A writer owns exactly one LiveFile at a
// time per zone; rotation replaces it wholesale.
type LiveFile struct {
	mu        sync.Mutex
	zoneDir   ZoneDir
	fileNum   int64
	dataFile  *os.File
	indexFile *os.File
	State     *FileState
	maxBytes  int64
}

// OpenLiveFile opens (creating if absent) the data and index files for
// fileNum in zoneDir, appending further writes to whatever they already
// contain. If preState is non-nil (a FileState rebuilt by Init from an
// existing index or data file, see initgc.go), it is used as-is; otherwise
// a fresh FileState is seeded from the files' current sizes, the shape
// needed for a brand-new file number.
func OpenLiveFile(zoneDir ZoneDir, fileNum, maxBytes int64, preState *FileState) (*LiveFile, error) {
	dataFile, err := os.OpenFile(zoneDir.DataPath(fileNum), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "opening data file")
	}
	indexFile, err := os.OpenFile(zoneDir.IndexPath(fileNum), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		dataFile.Close()
		return nil, ozerr.Wrap(ozerr.IO, err, "opening index file")
	}
	state := preState
	if state == nil {
		dataInfo, err := dataFile.Stat()
		if err != nil {
			dataFile.Close()
			indexFile.Close()
			return nil, ozerr.Wrap(ozerr.IO, err, "stat data file")
		}
		state = NewFileState(fileNum)
		state.dataSize = dataInfo.Size()
		if indexInfo, err := indexFile.Stat(); err == nil {
			state.indexSize = indexInfo.Size()
		}
	}
	return &LiveFile{
		zoneDir: zoneDir, fileNum: fileNum,
		dataFile: dataFile, indexFile: indexFile,
		State: state, maxBytes: maxBytes,
	}, nil
}

// WriteRequest describes one value to append (spec.md §4.8).
type WriteRequest struct {
	KeyDaticleBytes   []byte
	ValueDaticleBytes []byte
	Meta              Meta
	Checksummer       Checksummer
}

// Append performs the writer path's steps 1-4 (spec.md §4.8): append
// StoredKey+StoredValue to the data file, append the matching index
// record, and return the resulting FileLocation. Rotation (step 6) is the
// caller's responsibility via FileRegistry.RotateIfNeeded, since it must happen
// after the cache has been told about this write, not before.
func (lf *LiveFile) Append(req WriteRequest) (FileLocation, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	storedKey := EncodeStoredKey(req.Meta, req.KeyDaticleBytes, req.Checksummer)
	storedValue := EncodeStoredValue(req.ValueDaticleBytes, req.Checksummer)

	start := lf.State.DataSize()
	if _, err := lf.dataFile.Write(storedKey); err != nil {
		return FileLocation{}, ozerr.Wrap(ozerr.IO, err, "appending stored key")
	}
	if _, err := lf.dataFile.Write(storedValue); err != nil {
		return FileLocation{}, ozerr.Wrap(ozerr.IO, err, "appending stored value")
	}

	loc := FileLocation{
		FileNum:  lf.fileNum,
		StartOff: start,
		KeyLen:   int64(len(storedKey)),
		ValueLen: int64(len(storedValue)),
	}

	idxRecord := append(append([]byte{}, storedKey...), EncodeLocationRecord(loc)...)
	idxCsumBuf := make([]byte, 8)
	idxCsum := Checksummer(defaultChecksummer)
	if req.Checksummer != nil {
		idxCsum = req.Checksummer
	}
	csum := idxCsum(idxRecord)
	for i := 7; i >= 0; i-- {
		idxCsumBuf[i] = byte(csum)
		csum >>= 8
	}
	idxRecord = append(idxRecord, idxCsumBuf...)
	if _, err := lf.indexFile.Write(idxRecord); err != nil {
		return FileLocation{}, ozerr.Wrap(ozerr.IO, err, "appending index record")
	}

	lf.State.RecordAppend(start, loc.RecordLen(), int64(len(idxRecord)))
	return loc, nil
}

// NeedsRotation reports whether this file has reached data_file_max_bytes
// and a new live file number should be opened (spec.md §4.6).
func (lf *LiveFile) NeedsRotation() bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.State.DataSize() >= lf.maxBytes
}

// FileNum reports this live file's number.
func (lf *LiveFile) FileNum() int64 { return lf.fileNum }

// Close closes both file handles.
func (lf *LiveFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	err1 := lf.dataFile.Close()
	err2 := lf.indexFile.Close()
	if err1 != nil {
		return ozerr.Wrap(ozerr.IO, err1, "closing data file")
	}
	if err2 != nil {
		return ozerr.Wrap(ozerr.IO, err2, "closing index file")
	}
	return nil
}

// ReadAt reads length bytes starting at offset from the data file,
// independent of the writer's append cursor (used by readers of a live
// file).
func (lf *LiveFile) ReadAt(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := lf.dataFile.ReadAt(buf, offset)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "reading data file region")
	}
	return buf[:n], nil
}
