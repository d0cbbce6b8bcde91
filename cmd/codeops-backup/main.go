// codeops-backup snapshots a registry data file while the server may be
// running, using a bbolt read transaction. With -compact the snapshot is
// rewritten into a fresh file, reclaiming free pages.
package main

import (
	"flag"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/codeops-dev/registry/pkg/storage"
)

func main() {
	src := flag.String("src", "codeops.db", "path to the registry data file")
	dst := flag.String("dst", "", "path for the snapshot (required)")
	compact := flag.Bool("compact", false, "rewrite the snapshot into a fresh compacted file")
	flag.Parse()

	if *dst == "" {
		fmt.Fprintln(os.Stderr, "Error: -dst is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*src, *dst, *compact); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(src, dst string, compact bool) error {
	store, err := storage.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer store.Close()

	target := dst
	if compact {
		target = dst + ".tmp"
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	n, err := store.Snapshot(out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return fmt.Errorf("snapshot: %w", err)
	}

	if !compact {
		fmt.Printf("Snapshot written: %s (%d bytes)\n", dst, n)
		return nil
	}

	if err := compactInto(target, dst); err != nil {
		os.Remove(target)
		return err
	}
	os.Remove(target)

	info, err := os.Stat(dst)
	if err != nil {
		return err
	}
	fmt.Printf("Compacted snapshot written: %s (%d -> %d bytes)\n", dst, n, info.Size())
	return nil
}

// compactInto copies every bucket of the snapshot into a fresh file,
// dropping free pages.
func compactInto(src, dst string) error {
	from, err := bolt.Open(src, 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer from.Close()

	to, err := bolt.Open(dst, 0o600, nil)
	if err != nil {
		return fmt.Errorf("create compacted file: %w", err)
	}
	defer to.Close()

	if err := bolt.Compact(to, from, 0); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}
