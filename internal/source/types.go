package source

// FileID is the index of a file snapshot inside its FileSet. Re-adding a path
// yields a new ID; old IDs stay valid.
type FileID uint32

// FileFlags records how a snapshot was obtained.
type FileFlags uint8

// FileVirtual marks a snapshot built from memory: a test or its scratch copy.
const FileVirtual FileFlags = 1

// File is one immutable snapshot of a source text.
type File struct {
	ID      FileID
	Path    string // через "/", очищенный
	Content []byte
	LineIdx []uint32 // смещения символов \n
	Flags   FileFlags
}

// LineCol is a 1-based position. Col counts bytes, as compiler spans do.
type LineCol struct {
	Line uint32
	Col  uint32
}
