// Package lump reads, edits and writes game resource containers such as
// Build engine GRP files, Doom WADs and Quake PAKs.
//
// An Archive holds an ordered list of entries parsed from a container's
// directory table. Entry bodies load lazily from the backing ByteSource on
// first use, or eagerly at open time with WithLoadPolicy(LoadEager).
// Writing streams unloaded entries straight from the old container, so a
// save never forces every body into memory.
//
// Formats are selected by content: Detect probes each registered format
// with positional reads only, so a probe never disturbs a later parse of
// the same source.
package lump
