// Package lock guards a session directory so only one daemon uses it.
package lock

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// ErrHeld is wrapped by the error Acquire returns when the lock is taken.
var ErrHeld = errors.New("session is locked")

// Holder is what the lock file records about the process holding it.
type Holder struct {
	PID   int
	Owner string
	Host  string
	Since time.Time
}

func (h Holder) String() string {
	who := "PID " + strconv.Itoa(h.PID)
	if h.Owner != "" {
		who = h.Owner + " (" + who + ")"
	}
	if h.Host != "" {
		who += " on " + h.Host
	}
	return who
}

func (h Holder) writeTo(w io.Writer) error {
	_, err := fmt.Fprintf(w, "pid %d\nowner %s\nhost %s\nsince %s\n",
		h.PID, h.Owner, h.Host, h.Since.UTC().Format(time.RFC3339))
	return err
}

func readHolder(r io.Reader) Holder {
	var h Holder
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, _ := strings.Cut(sc.Text(), " ")
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "owner":
			h.Owner = value
		case "host":
			h.Host = value
		case "since":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}

// HeldError reports who holds a lock Acquire could not take.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s: held by %s since %s", e.Path, e.Holder, e.Holder.Since.Local().Format(time.DateTime))
}

func (e *HeldError) Unwrap() error { return ErrHeld }

// Lock is a held session lock. The flock is released when the process
// exits, so a crashed daemon never leaves the session locked.
type Lock struct {
	f      *os.File
	path   string
	holder Holder
}

// Acquire takes the lock on dir for owner, creating dir if needed. It does
// not wait: a held lock fails at once with an error wrapping ErrHeld.
func Acquire(dir, owner string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := flock(f, syscall.LOCK_EX); err != nil {
		h := readHolder(f)
		_ = f.Close()
		return nil, &HeldError{Holder: h, Path: path}
	}

	host, _ := os.Hostname()
	l := &Lock{f: f, path: path, holder: Holder{PID: os.Getpid(), Owner: owner, Host: host, Since: time.Now()}}
	if err := l.record(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return l, nil
}

func (l *Lock) record() error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return l.holder.writeTo(l.f)
}

// Holder describes this process as recorded in the lock file.
func (l *Lock) Holder() Holder { return l.holder }

// Release removes the lock file and drops the lock. It is safe to call more
// than once and on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.f.Close()
	l.f = nil
	return err
}

// Probe reports whether dir is locked and by whom, without taking the lock.
func Probe(dir string) (Holder, bool) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		return Holder{}, false
	}
	defer func() { _ = f.Close() }()

	if flock(f, syscall.LOCK_SH) == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return Holder{}, false
	}
	return readHolder(f), true
}

func flock(f *os.File, how int) error {
	return syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
}
