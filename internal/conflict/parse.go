package conflict

import "strings"

const (
	markerOpen  = "<<<<<<<"
	markerBase  = "|||||||"
	markerSplit = "======="
	markerClose = ">>>>>>>"
)

// Block is one conflicted region. Lines are kept exactly as they appear in
// the file, without line terminators.
type Block struct {
	// Line is the 1-based line number of the opening marker.
	Line int

	LocalRef    string
	IncomingRef string
	Local       []string
	Incoming    []string
}

// Segment is either a run of ordinary lines or a single conflict block.
type Segment struct {
	Lines    []string
	Conflict *Block
}

// Document is a parsed file with conflict markers.
type Document struct {
	Segments []Segment

	// TrailingNewline records whether the last line was LF-terminated.
	TrailingNewline bool
}

// Blocks returns the conflict blocks in document order.
func (d *Document) Blocks() []*Block {
	var out []*Block
	for _, seg := range d.Segments {
		if seg.Conflict != nil {
			out = append(out, seg.Conflict)
		}
	}
	return out
}

// Views rebuilds the two whole-file versions: ordinary lines plus the
// local side of every block, and ordinary lines plus every incoming side.
func (d *Document) Views() (local, incoming []string) {
	for _, seg := range d.Segments {
		if seg.Conflict == nil {
			local = append(local, seg.Lines...)
			incoming = append(incoming, seg.Lines...)
			continue
		}
		local = append(local, seg.Conflict.Local...)
		incoming = append(incoming, seg.Conflict.Incoming...)
	}
	return local, incoming
}

type parseState int

const (
	stateText parseState = iota
	stateLocal
	stateBase
	stateIncoming
)

// Parse splits raw file content into ordinary text and conflict blocks.
// A diff3 base section is dropped. Nested, unterminated or stray markers
// yield a *MalformedConflictError.
func Parse(raw []byte) (*Document, error) {
	lines, trailing := splitLines(raw)
	doc := &Document{TrailingNewline: trailing}

	var (
		state parseState
		text  []string
		block *Block
	)

	flushText := func() {
		if len(text) > 0 {
			doc.Segments = append(doc.Segments, Segment{Lines: text})
			text = nil
		}
	}

	for i, line := range lines {
		lineNum := i + 1
		kind, ref := classify(line)

		switch state {
		case stateText:
			switch kind {
			case markerOpen:
				flushText()
				block = &Block{Line: lineNum, LocalRef: ref}
				state = stateLocal
			case markerClose, markerBase:
				return nil, &MalformedConflictError{Line: lineNum, Reason: "marker outside a conflict block"}
			default:
				text = append(text, line)
			}

		case stateLocal:
			switch kind {
			case markerSplit:
				state = stateIncoming
			case markerBase:
				state = stateBase
			case markerOpen:
				return nil, &MalformedConflictError{Line: lineNum, Reason: "nested conflict block"}
			case markerClose:
				return nil, &MalformedConflictError{Line: lineNum, Reason: "missing ======= separator"}
			default:
				block.Local = append(block.Local, line)
			}

		case stateBase:
			switch kind {
			case markerSplit:
				state = stateIncoming
			case markerOpen, markerClose, markerBase:
				return nil, &MalformedConflictError{Line: lineNum, Reason: "unexpected marker in base section"}
			}

		case stateIncoming:
			switch kind {
			case markerClose:
				block.IncomingRef = ref
				doc.Segments = append(doc.Segments, Segment{Conflict: block})
				block = nil
				state = stateText
			case markerOpen, markerBase, markerSplit:
				return nil, &MalformedConflictError{Line: lineNum, Reason: "unexpected marker in incoming section"}
			default:
				block.Incoming = append(block.Incoming, line)
			}
		}
	}

	if state != stateText {
		return nil, &MalformedConflictError{Line: block.Line, Reason: "unterminated conflict block"}
	}
	flushText()
	return doc, nil
}

// HasMarkers reports whether any line of raw is an opening conflict marker
// as Parse recognizes it.
func HasMarkers(raw []byte) bool {
	for _, line := range strings.Split(string(raw), "\n") {
		if kind, _ := classify(line); kind == markerOpen {
			return true
		}
	}
	return false
}

// classify returns the marker kind of line, or "" for ordinary text,
// plus any ref name following an open or close marker.
func classify(line string) (kind, ref string) {
	trimmed := strings.TrimRight(line, "\r")
	switch {
	case trimmed == markerSplit:
		return markerSplit, ""
	case isMarker(trimmed, markerOpen):
		return markerOpen, strings.TrimSpace(trimmed[len(markerOpen):])
	case isMarker(trimmed, markerClose):
		return markerClose, strings.TrimSpace(trimmed[len(markerClose):])
	case isMarker(trimmed, markerBase):
		return markerBase, ""
	}
	return "", ""
}

// isMarker matches a marker alone on its line or followed by a space.
func isMarker(line, marker string) bool {
	return line == marker || strings.HasPrefix(line, marker+" ")
}

func splitLines(raw []byte) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	s := string(raw)
	trailing := strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n"), trailing
}

func joinLines(lines []string, trailing bool) []byte {
	if len(lines) == 0 {
		return []byte{}
	}
	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return []byte(out)
}
