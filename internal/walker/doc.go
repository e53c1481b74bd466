// Package walker discovers HTML source files under the configured roots.
//
// Discovery is lazy: Walk returns an iter.Seq2 that the indexer ranges
// over, so a cancelled run stops reading the tree immediately.
//
//	for entry, err := range walker.Walk(ctx, cfg.RootPaths()) {
//	    if err != nil {
//	        // ctx.Err() or an unreadable directory
//	    }
//	    fmt.Println(entry.Path, entry.Category)
//	}
//
// Hidden directories are skipped. Symlinked directories are not followed.
package walker
