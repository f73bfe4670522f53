package snapshot

import (
	"mapforge.dev/internal/dmm"
)

// Store reads and writes map snapshot files for the map holder.
type Store struct {
	// BeforeWrite runs before an existing file is overwritten (backups).
	BeforeWrite func(path string) error
	// AfterWrite observes every successful save (index).
	AfterWrite func(path string, h Header)
}

func (s Store) Load(path string, h *dmm.Holder) (*dmm.Map, error) {
	snap, err := ReadMap(path)
	if err != nil {
		return nil, err
	}
	return dmm.ImportSnapshot(h, snap.Map)
}

func (s Store) Save(path string, m *dmm.Map) error {
	if s.BeforeWrite != nil {
		if err := s.BeforeWrite(path); err != nil {
			return err
		}
	}
	snap := FromMap(m)
	if err := WriteMap(path, snap); err != nil {
		return err
	}
	if s.AfterWrite != nil {
		s.AfterWrite(path, snap.Header)
	}
	return nil
}
