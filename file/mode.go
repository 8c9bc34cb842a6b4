package file

// Mode selects how Open maps an existing or new table file. It mirrors
// spec.md §6's open-mode table.
type Mode int

const (
	// CreateOnly creates (truncating if necessary) a new file sized for
	// the requested capacity and maps it read-write. It never checks
	// whether a file already existed at path — spec.md §9 Open Question
	// 4 resolves this ambiguity explicitly: CreateOnly always truncates.
	// Use OpenOrCreate for existence-safe creation.
	CreateOnly Mode = iota
	// OpenOrCreate maps an existing file read-write, or creates one if
	// none exists yet.
	OpenOrCreate
	// ReadWrite maps an existing file read-write. It is refused with
	// errors.ErrEndianMismatch if the file's header was written by a
	// process of the opposite byte order.
	ReadWrite
	// ReadOnly maps an existing file for reading only. A byte-order
	// mismatch is tolerated: reads are served through a byte-swapped
	// view of the header.
	ReadOnly
	// ReadPrivate maps an existing file copy-on-write; writes are never
	// persisted and are visible only to the calling process.
	ReadPrivate
	// CopyOnWrite maps an existing file copy-on-write; writes are
	// visible to the calling process only, same as ReadPrivate. The two
	// modes are kept distinct in the public API because spec.md
	// documents them as separate open modes, even though POSIX mmap
	// implements both as MAP_PRIVATE.
	CopyOnWrite
)

func (m Mode) String() string {
	switch m {
	case CreateOnly:
		return "CreateOnly"
	case OpenOrCreate:
		return "OpenOrCreate"
	case ReadWrite:
		return "ReadWrite"
	case ReadOnly:
		return "ReadOnly"
	case ReadPrivate:
		return "ReadPrivate"
	case CopyOnWrite:
		return "CopyOnWrite"
	default:
		return "Mode(unknown)"
	}
}

// writable reports whether callers of this mode may mutate mapped
// payload bytes locally. It says nothing about whether those writes
// reach disk — see private.
func (m Mode) writable() bool {
	switch m {
	case CreateOnly, OpenOrCreate, ReadWrite, ReadPrivate, CopyOnWrite:
		return true
	default:
		return false
	}
}

// private reports whether this mode maps the file MAP_PRIVATE (local,
// copy-on-write, never persisted).
func (m Mode) private() bool {
	return m == ReadPrivate || m == CopyOnWrite
}
