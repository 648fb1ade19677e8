// Package event defines the immutable event and tag types that flow from
// watch sources through the dispatcher into the filterer.
package event

import (
	"fmt"
	"log/slog"
	"strings"
)

// Priority is the urgency band assigned to an event by its source. Urgent
// events bypass filtering entirely.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// FileType narrows a Path tag to what kind of filesystem entry it names.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeFile
	FileTypeDir
	FileTypeSymlink
	FileTypeOther
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDir:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	case FileTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// ProcessEnd describes how a supervised process ended. A nil *ProcessEnd
// tag value means "unknown" (rendered "_" by the filterer).
type ProcessEnd struct {
	// Exactly one of these is set, chosen by Kind.
	Kind      ProcessEndKind
	ExitCode  int
	Signal    Signal
	Exception int64 // rendered in hex
}

type ProcessEndKind uint8

const (
	ProcessEndSuccess ProcessEndKind = iota
	ProcessEndExitError
	ProcessEndExitSignal
	ProcessEndExitStop
	ProcessEndException
	ProcessEndContinued
)

// RenderProcessEnd renders end in the canonical single-string form spec.md
// §4.6 documents: "_" (unknown), "success", "error(N)", "signal(NAME)",
// "stop(N)", "exception(HEX)", or "continued". filterer/match_tag.go accepts
// this plus two looser signal variants ("SIGNAME", the bare number) when
// matching a ProcessCompletion filter; this is the one form used for display.
func RenderProcessEnd(end *ProcessEnd) string {
	if end == nil {
		return "_"
	}
	switch end.Kind {
	case ProcessEndSuccess:
		return "success"
	case ProcessEndExitError:
		return fmt.Sprintf("error(%d)", end.ExitCode)
	case ProcessEndExitSignal:
		return fmt.Sprintf("signal(%s)", end.Signal.Name)
	case ProcessEndExitStop:
		return fmt.Sprintf("stop(%d)", end.ExitCode)
	case ProcessEndException:
		return fmt.Sprintf("exception(%X)", end.Exception)
	case ProcessEndContinued:
		return "continued"
	default:
		return "_"
	}
}

// Signal is a portable representation of a process signal, canonicalised to
// the short/long/numeric name table used by the filterer (see sigMatch in
// filterer/match_tag.go).
type Signal struct {
	Name   string // short form, e.g. "INT"; "" if purely numeric/unknown
	Number int
}

// TagKind is the discriminant of a Tag, used both for dispatch and for the
// Matcher::Tag "match by discriminant name" case.
type TagKind uint8

const (
	TagPath TagKind = iota
	TagFileEventKind
	TagSource
	TagProcess
	TagSignal
	TagProcessCompletion
	TagOther
)

func (k TagKind) String() string {
	switch k {
	case TagPath:
		return "path"
	case TagFileEventKind:
		return "fileeventkind"
	case TagSource:
		return "source"
	case TagProcess:
		return "process"
	case TagSignal:
		return "signal"
	case TagProcessCompletion:
		return "processcompletion"
	case TagOther:
		return "other"
	default:
		return "unknown"
	}
}

// Tag is one facet of an Event. Exactly one of the typed fields is
// meaningful, selected by Kind; this mirrors the Rust tagged-union Tag type
// from the spec without needing a sealed-interface simulation.
type Tag struct {
	Kind TagKind

	// TagPath
	Path     string
	FileType *FileType // nil if unknown

	// TagFileEventKind
	FileEventKind string

	// TagSource
	Source string

	// TagProcess
	Pid int

	// TagSignal
	Signal Signal

	// TagProcessCompletion
	ProcessEnd *ProcessEnd // nil means "unknown" ("_")

	// TagOther: opaque, carried for round-tripping but never matched
	OtherName string
}

func PathTag(path string, ft *FileType) Tag {
	return Tag{Kind: TagPath, Path: path, FileType: ft}
}

func FileEventKindTag(kind string) Tag {
	return Tag{Kind: TagFileEventKind, FileEventKind: kind}
}

func SourceTag(source string) Tag {
	return Tag{Kind: TagSource, Source: source}
}

func ProcessTag(pid int) Tag {
	return Tag{Kind: TagProcess, Pid: pid}
}

// ParseSignalName resolves a short or long signal name (case-insensitive,
// e.g. "INT" or "SIGINT") to its canonical Signal, using the same
// short-name/number table the filterer matches against (see
// filterer/match_tag.go's sigMatch). Unknown names resolve to Number 0,
// which callers should treat as "unsupported".
func ParseSignalName(name string) Signal {
	n := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	switch n {
	case "HUP", "HANGUP":
		return Signal{Name: "HUP", Number: 1}
	case "INT", "INTERRUPT":
		return Signal{Name: "INT", Number: 2}
	case "QUIT":
		return Signal{Name: "QUIT", Number: 3}
	case "KILL", "FORCESTOP":
		return Signal{Name: "KILL", Number: 9}
	case "USR1":
		return Signal{Name: "USR1", Number: 10}
	case "USR2":
		return Signal{Name: "USR2", Number: 12}
	case "TERM", "TERMINATE":
		return Signal{Name: "TERM", Number: 15}
	default:
		return Signal{Name: "UNK", Number: 0}
	}
}

func SignalTag(sig Signal) Tag {
	return Tag{Kind: TagSignal, Signal: sig}
}

func ProcessCompletionTag(end *ProcessEnd) Tag {
	return Tag{Kind: TagProcessCompletion, ProcessEnd: end}
}

func (t Tag) String() string {
	return fmt.Sprintf("Tag{%s}", t.Kind)
}

// LogValue renders the tag's Kind plus whichever field it carries as a
// slog group, so watchlog prints e.g. "[tag.kind=path] [tag.path=/a/b.go]
// [tag.file_type=file]" for an attribute keyed "tag" instead of the opaque
// Tag{path} String() form. Only the
// fields relevant to Kind are populated on Tag to begin with, so this just
// mirrors that same one-of-N dispatch into the group.
func (t Tag) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", t.Kind.String())}
	switch t.Kind {
	case TagPath:
		attrs = append(attrs, slog.String("path", t.Path))
		if t.FileType != nil {
			attrs = append(attrs, slog.String("file_type", t.FileType.String()))
		}
	case TagFileEventKind:
		attrs = append(attrs, slog.String("fs_kind", t.FileEventKind))
	case TagSource:
		attrs = append(attrs, slog.String("source", t.Source))
	case TagProcess:
		attrs = append(attrs, slog.Int("pid", t.Pid))
	case TagSignal:
		attrs = append(attrs, slog.String("signal", t.Signal.Name), slog.Int("number", t.Signal.Number))
	case TagProcessCompletion:
		attrs = append(attrs, slog.String("end", RenderProcessEnd(t.ProcessEnd)))
	case TagOther:
		attrs = append(attrs, slog.String("name", t.OtherName))
	}
	return slog.GroupValue(attrs...)
}

// Event is an immutable bundle of tags carrying a priority. Events are
// constructed by watch sources and never mutated after creation.
type Event struct {
	Tags []Tag
}

func New(tags ...Tag) *Event {
	return &Event{Tags: tags}
}
