// Package bot implements Ozone's actor fabric: every active engine
// component (cache, file, reader, writer, init/gc, zone, and the
// supervisor itself) is a bot — an independently scheduled goroutine with a
// unique identity, a bounded inbound message channel, an external-signal
// semaphore, and an error counter the supervisor watches for excessive
// failure (spec.md §4.4).
//
// Grounded on the teacher's coordinator/health-monitor lifecycle
// (ctx/cancel/wg, consecutive-failure counter, restart callback) and
// shard-registry pool indexing, generalized from HTTP-addressed nodes to
// in-process goroutines addressed by channel.
package bot

import "fmt"

// Role identifies a bot's function within the fabric.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleConfig     Role = "config"
	RoleServer     Role = "server"
	RoleZone       Role = "zone"
	RoleCache      Role = "cache"
	RoleFile       Role = "file"
	RoleInitGC     Role = "initgc"
	RoleReader     Role = "reader"
	RoleWriter     Role = "writer"
)

// ZoneInd is the ordinal of a zone in [0, num_zones).
type ZoneInd int

// WorkerInd identifies one worker within a zone's pool for a given Role.
type WorkerInd struct {
	Zone ZoneInd
	Ord  int
}

func (w WorkerInd) String() string { return fmt.Sprintf("z%d.%d", w.Zone, w.Ord) }

// ID uniquely identifies one bot in the fabric.
type ID struct {
	Role   Role
	Worker WorkerInd
}

func (id ID) String() string { return fmt.Sprintf("%s[%s]", id.Role, id.Worker) }

// SupervisorID and ConfigID are singletons: spec.md §4.4 specifies exactly
// one Supervisor and one Config bot per engine.
var (
	SupervisorID = ID{Role: RoleSupervisor}
	ConfigID     = ID{Role: RoleConfig}
)
