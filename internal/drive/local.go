package drive

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// LocalSource treats sub-directories of Root as folders.
type LocalSource struct {
	fs   afero.Fs
	Root string
}

func NewLocalSource(fs afero.Fs, root string) *LocalSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalSource{fs: fs, Root: root}
}

// validName rejects names that would escape the folder they are looked up in.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func (l *LocalSource) FindFolder(ctx context.Context, name string) (*Folder, error) {
	if !validName(name) {
		return nil, nil
	}
	path := filepath.Join(l.Root, name)
	ok, err := afero.DirExists(l.fs, path)
	if err != nil || !ok {
		return nil, err
	}
	return &Folder{ID: path, Name: name}, nil
}

func (l *LocalSource) meta(path string, info os.FileInfo) FileMeta {
	return FileMeta{
		ID:         path,
		Name:       info.Name(),
		MimeType:   mime.TypeByExtension(filepath.Ext(info.Name())),
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (l *LocalSource) ListFiles(ctx context.Context, folder Folder) ([]FileMeta, error) {
	infos, err := afero.ReadDir(l.fs, folder.ID)
	if err != nil {
		return nil, err
	}
	var out []FileMeta
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		out = append(out, l.meta(filepath.Join(folder.ID, info.Name()), info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *LocalSource) FindFile(ctx context.Context, folder Folder, name string) (*FileMeta, error) {
	if !validName(name) {
		return nil, nil
	}
	path := filepath.Join(folder.ID, name)
	info, err := l.fs.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}
	m := l.meta(path, info)
	return &m, nil
}

func (l *LocalSource) GetContent(ctx context.Context, file FileMeta) (string, error) {
	info, err := l.fs.Stat(file.ID)
	if err != nil {
		return "", err
	}
	if info.Size() > maxContentBytes {
		return "", ErrTooLarge
	}
	data, err := afero.ReadFile(l.fs, file.ID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
