package diagfmt

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"uitest/internal/diag"
	"uitest/internal/source"
)

type editPreview struct {
	before []string
	after  []string
}

// buildEditPreview renders the whole lines touched by edit before and after
// applying it.
func buildEditPreview(fs *source.FileSet, edit diag.Edit) (editPreview, error) {
	if fs == nil {
		return editPreview{}, fmt.Errorf("nil FileSet")
	}
	id, ok := fs.GetLatest(edit.Span.File)
	if !ok {
		return editPreview{}, fmt.Errorf("file %q not found in FileSet", edit.Span.File)
	}
	file := fs.Get(id)

	start, err := file.OffsetOf(source.LineCol{Line: edit.Span.LineStart, Col: edit.Span.ColStart})
	if err != nil {
		return editPreview{}, err
	}
	end, err := file.OffsetOf(source.LineCol{Line: edit.Span.LineEnd, Col: edit.Span.ColEnd})
	if err != nil {
		return editPreview{}, err
	}
	if end < start {
		return editPreview{}, fmt.Errorf("edit span end %d before start %d", end, start)
	}

	blockStart := lineStartOffset(file, edit.Span.LineStart)
	blockEnd := max(lineEndOffsetInclusive(file, max(edit.Span.LineEnd, edit.Span.LineStart)), blockStart)

	lenFileContent, err := safecast.Conv[uint32](len(file.Content))
	if err != nil {
		return editPreview{}, fmt.Errorf("len file content overflow: %w", err)
	}
	blockEnd = min(blockEnd, lenFileContent)

	original := file.Content[blockStart:blockEnd]
	relStart := int(start - blockStart)
	relEnd := int(end - blockStart)
	if relStart < 0 || relStart > len(original) {
		return editPreview{}, fmt.Errorf("edit span start %d out of range for preview block", relStart)
	}
	if relEnd < relStart || relEnd > len(original) {
		return editPreview{}, fmt.Errorf("edit span end %d out of range for preview block", relEnd)
	}

	after := make([]byte, 0, len(original)+len(edit.Replacement))
	after = append(after, original[:relStart]...)
	after = append(after, edit.Replacement...)
	after = append(after, original[relEnd:]...)

	return editPreview{
		before: splitPreviewLines(original),
		after:  splitPreviewLines(after),
	}, nil
}

// splitPreviewLines drops the final newline so it does not show up as an
// extra empty line.
func splitPreviewLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

func lineStartOffset(f *source.File, line uint32) uint32 {
	if line <= 1 {
		return 0
	}
	idx := line - 2
	if int(idx) < len(f.LineIdx) {
		return f.LineIdx[idx] + 1
	}
	lenFileContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return lenFileContent
}

func lineEndOffsetInclusive(f *source.File, line uint32) uint32 {
	if line == 0 {
		return 0
	}
	idx := line - 1
	if int(idx) < len(f.LineIdx) {
		return f.LineIdx[idx] + 1
	}
	lenFileContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return lenFileContent
}
