package bot

// MsgKind discriminates the closed sum of messages bots exchange
// (spec.md §4.4). Payload shape per kind is documented alongside each
// constant; payloads that are specific to the storage engine (FileLocation,
// CacheEntry, ...) live in the ozone package and travel as Msg.Payload to
// avoid a dependency cycle between bot and ozone.
type MsgKind string

const (
	Ping  MsgKind = "ping"
	Ok    MsgKind = "ok"
	Error MsgKind = "error" // Msg.Err set

	Put    MsgKind = "put"    // user-level
	Get    MsgKind = "get"    // user-level
	Delete MsgKind = "delete" // user-level

	Write     MsgKind = "write"      // internal: writer bot append request
	Read      MsgKind = "read"       // internal: reader bot fetch request
	ReadCache MsgKind = "read_cache" // internal: cache bot lookup request

	Insert         MsgKind = "insert"           // cache update
	Chunks         MsgKind = "chunks"           // chunk count on a responder
	Value          MsgKind = "value"            // chunk-bearing value response
	KeyExists      MsgKind = "key_exists"       // bool payload
	KeyChunkExists MsgKind = "key_chunk_exists" // (index, bool) payload

	GcControl              MsgKind = "gc_control"
	GcCompleted             MsgKind = "gc_completed"
	GcCacheUpdateRequest    MsgKind = "gc_cache_update_request"
	GcCacheUpdateResponse   MsgKind = "gc_cache_update_response"
	NewLiveFile             MsgKind = "new_live_file"
	DumpCacheRequest        MsgKind = "dump_cache_request"
	DumpCacheResponse       MsgKind = "dump_cache_response"
	DumpFileStatesRequest   MsgKind = "dump_file_states_request"
	DumpFileStatesResponse  MsgKind = "dump_file_states_response"
	OzoneStateRequest       MsgKind = "ozone_state_request"
	OzoneStateResponse      MsgKind = "ozone_state_response"
	ClearCache              MsgKind = "clear_cache"
	GetZoneDir              MsgKind = "get_zone_dir"
	ZoneDir                 MsgKind = "zone_dir"
)

// Msg is the envelope every bot channel carries. Payload carries the
// kind-specific data; From names the sending bot for diagnostics; Resp, if
// non-nil, is where a response (if any) should be sent.
type Msg struct {
	Kind    MsgKind
	From    ID
	Payload any
	Err     error
	Resp    *Responder
}
