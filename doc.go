// Package lump reads, edits and writes game resource archives: Build engine
// GRP files, Doom IWAD/PWAD files and Quake PAK files.
//
// This package provides a high-level API through [Client], which opens
// archives with a shared configuration: entry-type classification, an
// on-disk body cache for remote archives and save-time backups. For
// direct access to the archive engine, use the [core] subpackage.
//
// Opening an archive only reads its header and directory. Entry bodies are
// read on first use and kept in memory until the archive is saved or
// closed.
//
// # Quick Start
//
//	c, err := lump.NewClient(lump.WithBackupDir("/var/backups/lump"))
//	if err != nil {
//	    return err
//	}
//	a, err := c.Open("duke3d.grp")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	e := a.Entry("GAME.CON")
//	data, err := a.ReadEntry(e)
//
// # Remote archives
//
// OpenURL reads an archive over HTTP range requests. Combine it with
// [WithCacheDir] so bodies fetched once are served from disk afterwards:
//
//	c, err := lump.NewClient(lump.WithCacheDir("/var/cache/lump"))
//	a, err := c.OpenURL(ctx, "https://example.com/doom2.wad")
package lump
