package backup

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

const snapshotFile = "reminders.json"

// Keeper maintains a local git repository holding a history of the persisted
// reminder collection: one commit per save. Best effort only; a failed
// snapshot never fails the save that triggered it.
type Keeper struct {
	mu   sync.Mutex
	repo *git.Repository
	path string
	log  *zap.SugaredLogger
}

// Open opens the repository at path, initializing it if needed.
func Open(path string, log *zap.SugaredLogger) (*Keeper, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, err
	}
	return &Keeper{repo: repo, path: path, log: log}, nil
}

// Snapshot writes the serialized collection into the repository and commits
// it. Implements store.Snapshotter.
func (k *Keeper) Snapshot(data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.commit(data); err != nil {
		k.log.Warnf("[backup] snapshot failed: %v", err)
	}
}

func (k *Keeper) commit(data []byte) error {
	if err := os.WriteFile(filepath.Join(k.path, snapshotFile), data, 0o644); err != nil {
		return err
	}

	w, err := k.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := w.Add(snapshotFile); err != nil {
		return err
	}

	status, err := w.Status()
	if err != nil {
		return err
	}
	if status.IsClean() {
		// Save produced an identical blob; nothing to record.
		return nil
	}

	_, err = w.Commit("snapshot reminder collection", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "remind-server",
			Email: "remind-server@localhost",
			When:  time.Now(),
		},
	})
	return err
}
