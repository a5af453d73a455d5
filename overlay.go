package mclens

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// overlayFs serves unsaved buffers in place of the files beneath it.
// Directories and paths without a buffer come from the base filesystem.
// Writes go to the base filesystem.
type overlayFs struct {
	afero.Fs
	overlay map[string]Change
}

func newOverlayFs(base afero.Fs, overlay map[string]Change) afero.Fs {
	return &overlayFs{Fs: base, overlay: overlay}
}

func (o *overlayFs) Name() string { return "overlayFs" }

// buffer returns a read-only view of the buffer for name, if there is one.
func (o *overlayFs) buffer(op, name string) (afero.File, bool, error) {
	name = filepath.Clean(name)
	c, ok := o.overlay[name]
	if !ok {
		return nil, false, nil
	}
	if c.Deleted {
		return nil, true, &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	}
	m := afero.NewMemMapFs()
	if err := afero.WriteFile(m, name, []byte(c.Text), 0o644); err != nil {
		return nil, true, err
	}
	f, err := m.Open(name)
	return f, true, err
}

func (o *overlayFs) Open(name string) (afero.File, error) {
	if f, ok, err := o.buffer("open", name); ok {
		return f, err
	}
	return o.Fs.Open(name)
}

func (o *overlayFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) == 0 {
		if f, ok, err := o.buffer("open", name); ok {
			return f, err
		}
	}
	return o.Fs.OpenFile(name, flag, perm)
}

func (o *overlayFs) Stat(name string) (os.FileInfo, error) {
	f, ok, err := o.buffer("stat", name)
	if !ok {
		return o.Fs.Stat(name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Stat()
}
