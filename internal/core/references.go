package core

// ReferenceTracker records the keys and selected column values seen during a
// feed load. It backs referential-integrity, duplicate-id and foreign
// value-match checks. A tracker belongs to one load and is not safe for
// concurrent use.
type ReferenceTracker struct {
	keys    map[string]map[string]struct{}
	values  map[string]map[string]map[string]struct{}
	tracked map[string]map[string]bool

	// journal lists additions made since Begin, nil when not journaling.
	journal []addition
}

type addition struct {
	table, column, value string
	key                  bool
}

func NewReferenceTracker() *ReferenceTracker {
	return &ReferenceTracker{
		keys:    make(map[string]map[string]struct{}),
		values:  make(map[string]map[string]map[string]struct{}),
		tracked: make(map[string]map[string]bool),
	}
}

// AddKey records a key value of table and reports whether it was already seen.
func (r *ReferenceTracker) AddKey(table, value string) (duplicate bool) {
	set, ok := r.keys[table]
	if !ok {
		set = make(map[string]struct{})
		r.keys[table] = set
	}
	if _, seen := set[value]; seen {
		return true
	}
	set[value] = struct{}{}
	if r.journal != nil {
		r.journal = append(r.journal, addition{table: table, value: value, key: true})
	}
	return false
}

// HasKey reports whether value was recorded as a key of table.
func (r *ReferenceTracker) HasKey(table, value string) bool {
	_, ok := r.keys[table][value]
	return ok
}

// KeyCount returns the number of distinct keys recorded for table.
func (r *ReferenceTracker) KeyCount(table string) int {
	return len(r.keys[table])
}

// Track asks the tracker to remember every value of table.column.
func (r *ReferenceTracker) Track(table, column string) {
	cols, ok := r.tracked[table]
	if !ok {
		cols = make(map[string]bool)
		r.tracked[table] = cols
	}
	cols[column] = true
}

// IsTracked reports whether values of table.column are being recorded.
func (r *ReferenceTracker) IsTracked(table, column string) bool {
	return r.tracked[table][column]
}

// AddValue records a value of table.column.
func (r *ReferenceTracker) AddValue(table, column, value string) {
	cols, ok := r.values[table]
	if !ok {
		cols = make(map[string]map[string]struct{})
		r.values[table] = cols
	}
	set, ok := cols[column]
	if !ok {
		set = make(map[string]struct{})
		cols[column] = set
	}
	if _, seen := set[value]; seen {
		return
	}
	set[value] = struct{}{}
	if r.journal != nil {
		r.journal = append(r.journal, addition{table: table, column: column, value: value})
	}
}

// HasValue reports whether value was recorded for table.column.
func (r *ReferenceTracker) HasValue(table, column, value string) bool {
	_, ok := r.values[table][column][value]
	return ok
}

// Begin starts recording additions so a table's keys and values can be
// dropped if its load fails.
func (r *ReferenceTracker) Begin() {
	r.journal = make([]addition, 0, 64)
}

// Commit keeps every addition made since Begin.
func (r *ReferenceTracker) Commit() {
	r.journal = nil
}

// Rollback removes every addition made since Begin.
func (r *ReferenceTracker) Rollback() {
	for _, a := range r.journal {
		if a.key {
			delete(r.keys[a.table], a.value)
			continue
		}
		delete(r.values[a.table][a.column], a.value)
	}
	r.journal = nil
}
