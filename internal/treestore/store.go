// Package treestore хранит бэкап как дерево каталогов с JSON-файлами.
package treestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const ext = ".json"

// Store: дерево с корнем root на файловой системе fs.
type Store struct {
	fs afero.Fs
}

// New: дерево внутри root на fs (пути наружу корня не выходят).
func New(fs afero.Fs, root string) *Store {
	if root == "" || root == "." {
		return &Store{fs: fs}
	}
	return &Store{fs: afero.NewBasePathFs(fs, root)}
}

// Reset удаляет каталог со всем содержимым и создаёт заново пустым.
func (s *Store) Reset(dir string) error {
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset %s: %w", dir, err)
	}
	return s.MkdirAll(dir)
}

func (s *Store) MkdirAll(dir string) error {
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

func (s *Store) WriteFile(p string, data []byte) error {
	if err := s.MkdirAll(path.Dir(p)); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// WriteJSON пишет v с отступом в два пробела.
func (s *Store) WriteJSON(p string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return s.WriteFile(p, append(b, '\n'))
}

func (s *Store) ReadFile(p string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return b, nil
}

func (s *Store) ReadJSON(p string, v any) error {
	b, err := s.ReadFile(p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", p, err)
	}
	return nil
}

func (s *Store) Exists(p string) (bool, error) {
	return afero.Exists(s.fs, p)
}

// List возвращает имена *.json файлов каталога (без подкаталогов), по алфавиту.
// Для отсутствующего каталога возвращается os.ErrNotExist.
func (s *Store) List(dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ext) {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FileName: имя файла для отображаемого имени сущности.
// Разделители путей заменяются на «_»: одинаково названные сущности перезапишут друг друга.
func FileName(displayName string) string {
	return DirName(displayName) + ext
}

// DirName: имя каталога для сущности (клиент, арендатор).
func DirName(displayName string) string {
	n := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(displayName)
	if n == "" || n == "." || n == ".." {
		n = "_" + n
	}
	return n
}

// Renamed: имя на диске отличается от отображаемого, восстановление создаст сущность под другим именем.
func Renamed(displayName string) bool { return DirName(displayName) != displayName }

// NameFromFile: обратное к FileName (без учёта замен).
func NameFromFile(file string) string {
	return strings.TrimSuffix(path.Base(file), ext)
}

func Join(elem ...string) string { return path.Join(elem...) }
