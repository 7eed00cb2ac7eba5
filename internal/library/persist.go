package library

import (
	"io"
	"os"
	"path/filepath"

	"github.com/metafates/gache"
	"github.com/spf13/afero"
)

// Persister is the storage boundary of the library. Load returns the zero
// State when nothing was saved yet.
type Persister interface {
	Load() (State, error)
	Save(State) error
}

// gacheFs adapts an afero filesystem to gache.FileSystem.
type gacheFs struct {
	fs afero.Fs
}

func (g gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return g.fs.OpenFile(name, flag, perm)
}

func (g gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return g.fs.MkdirAll(path, perm)
}

// FilePersister keeps the library as one JSON document through gache.
type FilePersister struct {
	cache *gache.Cache[*State]
	path  string
}

// NewFilePersister stores the library at path on fs. A nil fs means the OS filesystem.
func NewFilePersister(fs afero.Fs, path string) *FilePersister {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	path = filepath.Clean(path)
	return &FilePersister{
		cache: gache.New[*State](&gache.Options{
			Path:       path,
			FileSystem: gacheFs{fs: fs},
		}),
		path: path,
	}
}

func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load() (State, error) {
	cached, expired, err := p.cache.Get()
	if err != nil {
		return State{}, err
	}
	if expired || cached == nil {
		return State{}, nil
	}
	return *cached, nil
}

func (p *FilePersister) Save(state State) error {
	return p.cache.Set(&state)
}
