package voicegate

import (
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/storage"
)

var (
	_ Storage = (*storage.DBClient)(nil)
	_ Storage = (*storage.DirStore)(nil)
)

// NewSQLiteStorage opens (or creates) a SQLite template store.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return storage.NewDBClientWithPath(dbPath)
}

// NewDirStorage keeps templates as <dir>/<username>.wav files.
func NewDirStorage(dir string) (Storage, error) {
	return storage.NewDirStore(dir)
}
