package gateway

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// RecordStore is the Persistent Session Record (C7): a single file holding
// {session_id, sn, gateway_url}, opened read+write+create once and
// rewritten in place every sync, per §4.7.
type RecordStore struct {
	f *os.File
}

// OpenRecordStore opens (creating if absent) the record file at path. If
// the file is non-empty its contents are parsed as JSON; a parse failure
// is fatal, per §4.7/§7 ("instruct the operator to delete it").
func OpenRecordStore(path string) (*RecordStore, domain.SessionRecord, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, domain.SessionRecord{}, domain.Fatal(fmt.Sprintf("opening session record %s", path), err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, domain.SessionRecord{}, domain.Fatal("stat session record", err)
	}

	var rec domain.SessionRecord
	if info.Size() > 0 {
		raw := make([]byte, info.Size())
		if _, err := f.ReadAt(raw, 0); err != nil {
			f.Close()
			return nil, domain.SessionRecord{}, domain.Fatal(fmt.Sprintf("reading session record %s", path), err)
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			f.Close()
			return nil, domain.SessionRecord{}, domain.Fatal(
				fmt.Sprintf("session record %s is corrupt; delete it and restart", path), err)
		}
	}

	return &RecordStore{f: f}, rec, nil
}

// Persist truncates and rewrites the record file with rec, followed by a
// durability sync, per the every-10s persistence rule in §4.5.
func (s *RecordStore) Persist(rec domain.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.Storage("encoding session record", err)
	}

	if _, err := s.f.Seek(0, 0); err != nil {
		return domain.Storage("seeking session record", err)
	}
	if err := s.f.Truncate(0); err != nil {
		return domain.Storage("truncating session record", err)
	}
	if _, err := s.f.Write(raw); err != nil {
		return domain.Storage("writing session record", err)
	}
	if err := s.f.Sync(); err != nil {
		return domain.Storage("syncing session record", err)
	}
	return nil
}

func (s *RecordStore) Close() error {
	return s.f.Close()
}
