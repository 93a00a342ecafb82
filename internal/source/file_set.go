package source

import (
	"fmt"
	"unicode/utf8"

	"fortio.org/safecast"
)

// FileSet manages a collection of source files and provides global byte offset resolution.
type FileSet struct {
	files []File
	index map[string]FileID // path -> id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file from normalized bytes, computes LineIdx, and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists,
// so every fix round keeps its own immutable snapshot of the scratch file.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	lineIdx := buildLineIndex(content)
	normalizedPath := normalizePath(path)

	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: lineIdx,
		Flags:   flags,
	})
	// Всегда обновляем индекс на последнюю версию файла
	fileSet.index[normalizedPath] = id
	return id
}

// AddVirtual adds a virtual file (scratch copy or test input) with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file metadata for the given ID, or nil when the ID is unknown.
func (fileSet *FileSet) Get(id FileID) *File {
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return &fileSet.files[id]
}

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// LineCount returns the number of physical lines in the file. A trailing
// newline terminates the last line rather than opening a new one, and an
// empty file has no lines.
func (f *File) LineCount() int {
	if len(f.Content) == 0 {
		return 0
	}
	n := len(f.LineIdx)
	if f.Content[len(f.Content)-1] != '\n' {
		n++
	}
	return n
}

// GetLine возвращает строку с заданным номером (1-based) из файла.
// Если строка не существует, возвращает пустую строку.
func (f *File) GetLine(lineNum uint32) string {
	start, end, ok := f.lineBounds(lineNum)
	if !ok {
		return ""
	}
	return string(f.Content[start:end])
}

// lineBounds returns the byte range of a line without its terminating newline.
func (f *File) lineBounds(lineNum uint32) (start, end uint32, ok bool) {
	if lineNum == 0 {
		return 0, 0, false
	}
	lenLineIdx, err := safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return 0, 0, false
	}

	if (lineNum - 1) < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}
	if start > lenContent {
		return 0, 0, false
	}
	if end > lenContent {
		end = lenContent
	}
	return start, end, true
}

// OffsetOf converts a position with a 1-based character column into a byte
// offset. A column one past the last character addresses the end of the line
// (just before its newline).
func (f *File) OffsetOf(pos LineCol) (uint32, error) {
	if pos.Col == 0 {
		return 0, fmt.Errorf("%s: column must be 1-based, got 0", f.Path)
	}
	// позиция сразу за последней строкой (конец файла без \n)
	if int(pos.Line) == f.LineCount()+1 && pos.Col == 1 {
		return safecast.Conv[uint32](len(f.Content))
	}
	start, end, ok := f.lineBounds(pos.Line)
	if !ok {
		return 0, fmt.Errorf("%s: line %d out of range", f.Path, pos.Line)
	}
	line := f.Content[start:end]
	want := int(pos.Col - 1)
	off := 0
	for i := 0; i < want; i++ {
		if off >= len(line) {
			return 0, fmt.Errorf("%s:%d: column %d out of range", f.Path, pos.Line, pos.Col)
		}
		_, size := utf8.DecodeRune(line[off:])
		off += size
	}
	delta, err := safecast.Conv[uint32](off)
	if err != nil {
		return 0, fmt.Errorf("column offset overflow: %w", err)
	}
	return start + delta, nil
}
