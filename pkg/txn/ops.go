package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Op is a pending filesystem operation registered with a transaction.
//
// The set of operations is closed: FreshWrite, Replace and Move. Each one
// carries exactly the state needed to undo it, so every write path in the
// engine has a statically known undo action.
type Op interface {
	fmt.Stringer
	pendingOp()
}

// FreshWrite records that Path did not exist before the transaction wrote it.
// Undo: delete Path.
type FreshWrite struct {
	Path string
}

// Replace records an in-place overwrite of an existing file.
// Undo: restore Original with Mode at Path.
type Replace struct {
	Path     string
	Original []byte
	Mode     os.FileMode
}

// Move records a rename from From to To.
// Undo: rename To back to From and restore ModTime, if set, on From.
type Move struct {
	From    string
	To      string
	ModTime time.Time
}

func (FreshWrite) pendingOp() {}
func (Replace) pendingOp()    {}
func (Move) pendingOp()       {}

func (o FreshWrite) String() string { return "fresh-write " + o.Path }
func (o Replace) String() string {
	return fmt.Sprintf("replace %s (%d bytes snapshot)", o.Path, len(o.Original))
}
func (o Move) String() string { return "move " + o.From + " -> " + o.To }

// revert undoes a single operation.
func revert(op Op) error {
	switch o := op.(type) {
	case FreshWrite:
		if err := os.Remove(o.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("undo %s: %w", o, err)
		}
		return nil

	case Replace:
		if err := restoreFile(o.Path, o.Original, o.Mode); err != nil {
			return fmt.Errorf("undo %s: %w", o, err)
		}
		return nil

	case Move:
		if err := os.MkdirAll(filepath.Dir(o.From), 0755); err != nil {
			return fmt.Errorf("undo %s: %w", o, err)
		}
		if err := os.Rename(o.To, o.From); err != nil {
			return fmt.Errorf("undo %s: %w", o, err)
		}
		if !o.ModTime.IsZero() {
			if err := os.Chtimes(o.From, time.Time{}, o.ModTime); err != nil {
				return fmt.Errorf("undo %s: %w", o, err)
			}
		}
		return nil

	default:
		panic(fmt.Sprintf("txn: unknown pending operation %T", op))
	}
}

// restoreFile writes data to path through a temp file and an atomic rename,
// so a crash mid-restore never leaves a truncated file behind.
func restoreFile(path string, data []byte, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	tmp := filepath.Join(filepath.Dir(path), ".restore-"+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
