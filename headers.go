package arwriter

import (
	"fmt"
	"strings"
)

const memberHeaderSize = 60

// printRestOfMemberHeader writes the mtime/uid/gid/perms/size/terminator
// fields shared by every member header variant except the AIX big
// archive, which has its own fixed layout.
func printRestOfMemberHeader(w *strings.Builder, mtime uint64, uid, gid, perms uint32, size uint64) {
	fmt.Fprintf(w, "%-12d", mtime)
	fmt.Fprintf(w, "%-6d", uid%1000000)
	fmt.Fprintf(w, "%-6d", gid%1000000)
	fmt.Fprintf(w, "%-8o", perms)
	fmt.Fprintf(w, "%-10d", size)
	w.WriteString("`\n")
}

// printGNUSmallMemberHeader writes a 60-byte header for a member whose
// name fits inline (no string table reference needed).
func printGNUSmallMemberHeader(w *strings.Builder, name string, mtime uint64, uid, gid, perms uint32, size uint64) {
	fmt.Fprintf(w, "%-16s", name+"/")
	printRestOfMemberHeader(w, mtime, uid, gid, perms, size)
}

// printBSDMemberHeader writes a BSD-style header with the name stored
// inline after the header via the "#1/<len>" convention, padded so the
// data that follows the name stays 8-byte aligned.
func printBSDMemberHeader(w *strings.Builder, pos uint64, name string, mtime uint64, uid, gid, perms uint32, size uint64) {
	posAfterHeader := pos + memberHeaderSize + uint64(len(name))
	pad := OffsetToAlignment(posAfterHeader, 8)
	nameWithPadding := uint64(len(name)) + pad
	fmt.Fprintf(w, "#1/%-13d", nameWithPadding)
	printRestOfMemberHeader(w, mtime, uid, gid, perms, nameWithPadding+size)
	w.WriteString(name)
	w.WriteString(strings.Repeat("\x00", int(pad)))
}

// printBigArchiveMemberHeader writes the variable-length member header
// used by the AIX big archive format: decimal size/offset fields
// followed by the member name and a trailing newline.
func printBigArchiveMemberHeader(w *strings.Builder, name string, size, prevOffset, nextOffset, mtime uint64, uid, gid, perms uint32) {
	fmt.Fprintf(w, "%-20d", size)
	fmt.Fprintf(w, "%-20d", nextOffset)
	fmt.Fprintf(w, "%-20d", prevOffset)
	fmt.Fprintf(w, "%-12d", mtime)
	fmt.Fprintf(w, "%-12d", uint64(uid)%1000000000000)
	fmt.Fprintf(w, "%-12d", uint64(gid)%1000000000000)
	fmt.Fprintf(w, "%-12o", perms)
	fmt.Fprintf(w, "%-4d", len(name))
	w.WriteString(name)
	if len(name)%2 != 0 {
		w.WriteString("\x00")
	}
	w.WriteString("`\n")
}

// useStringTable reports whether a member's name must be recorded in
// the archive's shared string table rather than inline in its header:
// thin archives always do, and any name that is too long or contains a
// path separator must.
func useStringTable(thin bool, name string) bool {
	return thin || len(name) >= 16 || strings.Contains(name, "/")
}

// memberNameTable tracks the offsets already assigned to member names
// within the shared "//" string table member, so repeated names reuse
// one entry outside thin mode (see recordName for thin archives).
type memberNameTable struct {
	offsets map[string]uint64
	names   strings.Builder
}

func newMemberNameTable() *memberNameTable {
	return &memberNameTable{offsets: make(map[string]uint64)}
}

// stringTableEntrySuffix returns the suffix appended to name when it is
// recorded in the string table: COFF archives NUL-terminate, everyone
// else uses a "/\n" terminator understood by GNU ar.
func stringTableEntrySuffix(kind ArchiveKind) string {
	if IsCOFF(kind) {
		return "\x00"
	}
	return "/\n"
}

// recordName assigns (or reuses) a string-table offset for name and
// returns it. In thin-archive mode every reference gets its own fresh
// entry, matching the reference archiver's handling of thin members.
func (t *memberNameTable) recordName(kind ArchiveKind, thin bool, name string) uint64 {
	if !thin {
		if off, ok := t.offsets[name]; ok {
			return off
		}
	}
	off := uint64(t.names.Len())
	t.names.WriteString(name)
	t.names.WriteString(stringTableEntrySuffix(kind))
	if !thin {
		t.offsets[name] = off
	}
	return off
}

// printMemberHeader writes the appropriate header for kind and appends
// any newly needed entry to the shared name table.
func printMemberHeader(w *strings.Builder, kind ArchiveKind, pos uint64, names *memberNameTable, thin bool, name string, mtime uint64, uid, gid, perms uint32, size uint64) {
	if IsBSDLike(kind) {
		printBSDMemberHeader(w, pos, name, mtime, uid, gid, perms, size)
		return
	}
	if !useStringTable(thin, name) {
		printGNUSmallMemberHeader(w, name, mtime, uid, gid, perms, size)
		return
	}
	namePos := names.recordName(kind, thin, name)
	fmt.Fprintf(w, "/%-15d", namePos)
	printRestOfMemberHeader(w, mtime, uid, gid, perms, size)
}

// computeStringTable renders the "//" string-table member body
// (without its own header) given the accumulated name bytes.
func computeStringTable(names string) string {
	pad := OffsetToAlignment(uint64(len(names)), 2)
	return names + strings.Repeat("\n", int(pad))
}

// stringTableMemberHeader renders the 60-byte GNU header naming a "//"
// string-table member of the given body length. The date/uid/gid/mode
// fields are left blank for this member, so the reference archiver
// folds them into one wide left-justified name field rather than
// writing them out individually.
func stringTableMemberHeader(bodyLen uint64) string {
	var w strings.Builder
	fmt.Fprintf(&w, "%-48s", "//")
	fmt.Fprintf(&w, "%-10d", bodyLen)
	w.WriteString("`\n")
	return w.String()
}
