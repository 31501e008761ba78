package kmerindex

import (
	"unsafe"

	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// Freeze copies every range's row bit matrix into a single anonymous,
// huge-page-advised mmap region, the same technique
// fusion/kmer_index.go's initShard uses for its hash table, applied here
// to the row matrices instead: spec §5 expects the KmerIndex to fit
// entirely in memory and its row matrices to be bit-packed, and an
// anonymous mmap avoids Go's GC having to scan the (potentially large)
// backing arrays word by word. Freeze is optional; an index built with
// Build is already correct without it. It is a no-op if called twice.
func (idx *KmerIndex) Freeze() error {
	if idx.frozen != nil {
		return nil
	}
	var totalWords int
	for _, r := range idx.Ranges {
		totalWords += len(r.Rows) * r.WordsPerRow
	}
	if totalWords == 0 {
		return nil
	}

	const hugePageSize = 2 << 20
	size := totalWords*8 + hugePageSize
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	if err := unix.Madvise(region, unix.MADV_HUGEPAGE); err != nil {
		log.Error.Printf("kmerindex: madvise(MADV_HUGEPAGE) failed, continuing without it: %v", err)
	}

	base := unsafe.Pointer(&region[0])
	misalign := uintptr(base) % hugePageSize
	offset := uintptr(0)
	if misalign != 0 {
		offset = hugePageSize - misalign
	}
	words := (*[1 << 40]uint64)(unsafe.Add(base, offset))[:totalWords:totalWords]

	pos := 0
	for i, r := range idx.Ranges {
		for j, row := range r.Rows {
			copy(words[pos:pos+r.WordsPerRow], row)
			idx.Ranges[i].Rows[j] = words[pos : pos+r.WordsPerRow : pos+r.WordsPerRow]
			pos += r.WordsPerRow
		}
	}
	idx.frozen = region
	return nil
}

// Unfreeze releases the mmap region acquired by Freeze. It is safe to
// call on an index that was never frozen.
func (idx *KmerIndex) Unfreeze() error {
	if idx.frozen == nil {
		return nil
	}
	err := unix.Munmap(idx.frozen)
	idx.frozen = nil
	return err
}
