// Package arwriter writes static archive files (library archives of
// compiled object files) in the seven variants understood by contemporary
// linkers: GNU, GNU64, BSD, Darwin, Darwin64, COFF and AIX big archive.
//
// The package is a pure writer: it never reads an existing archive back.
// Callers supply an ordered list of members (name, payload bytes, an
// ObjectReader capability, and mtime/uid/gid/perms metadata) plus a
// variant tag and thin/EC flags, and WriteArchive produces a byte stream
// that is bit-for-bit identical to what a reference archiver (llvm-ar /
// llvm-lib) would produce for the same input.
//
// Symbol extraction from member payloads is delegated entirely to the
// caller-supplied ObjectReader (see ObjectReader and the default
// implementation in the objreader subpackage); this package
// never parses object file headers itself.
package arwriter
