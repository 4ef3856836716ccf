package rsyncdelta

import (
	"bufio"
	"crypto/md5" //nolint:gosec // rsync strong checksum, not a security boundary
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// deltaMagic identifies a delta file produced by this package.
var deltaMagic = [4]byte{'s', '3', 'r', 'd'}

const (
	opCopy byte = 0
	opData byte = 1
)

// sigIndex is a signature prepared for fast weak-checksum lookup during
// delta computation.
type sigIndex struct {
	blockSize int
	byWeak    map[uint32][]indexedStrong
}

type indexedStrong struct {
	index  int
	strong [StrongSumSize]byte
}

func buildIndex(blockSize int, sigs []blockSignature) *sigIndex {
	idx := &sigIndex{blockSize: blockSize, byWeak: make(map[uint32][]indexedStrong, len(sigs))}

	for i, s := range sigs {
		idx.byWeak[s.Weak] = append(idx.byWeak[s.Weak], indexedStrong{index: i, strong: s.Strong})
	}

	return idx
}

// match returns the block index of a signature block matching weak and the
// literal bytes of the window, or ok=false if no block matches.
func (idx *sigIndex) match(weak uint32, window []byte) (blockIndex int, ok bool) {
	candidates, found := idx.byWeak[weak]
	if !found {
		return 0, false
	}

	strong := md5.Sum(window) //nolint:gosec // rsync strong checksum, not a security boundary

	for _, c := range candidates {
		if c.strong == [StrongSumSize]byte(strong[:StrongSumSize]) {
			return c.index, true
		}
	}

	return 0, false
}

// Delta computes an rsync delta that transforms the content described by
// sigPath's signature into newPath's content, and writes it to a newly
// created temp file, returning that file's path.
func Delta(sigPath, newPath string) (deltaPath string, err error) {
	blockSize, sigs, err := readSignature(sigPath)
	if err != nil {
		return "", err
	}

	newData, err := os.ReadFile(newPath)
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: reading %s: %w", newPath, err)
	}

	out, err := os.CreateTemp("", "s3rsync-delta-*")
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: creating delta temp file: %w", err)
	}
	defer out.Close()

	if err := writeDelta(out, buildIndex(blockSize, sigs), blockSize, newData); err != nil {
		os.Remove(out.Name())
		return "", err
	}

	return out.Name(), nil
}

func writeDelta(out io.Writer, idx *sigIndex, blockSize int, data []byte) error {
	w := bufio.NewWriter(out)

	if _, err := w.Write(deltaMagic[:]); err != nil {
		return fmt.Errorf("rsyncdelta: writing delta header: %w", err)
	}

	n := len(data)
	if n == 0 {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("rsyncdelta: flushing delta: %w", err)
		}

		return nil
	}

	literalStart := 0
	i := 0
	windowEnd := blockSize

	if windowEnd > n {
		windowEnd = n
	}

	rw := newRollingWindow(data[i:windowEnd])

	for i < n {
		end := i + blockSize
		if end > n {
			end = n
		}

		if end-i == blockSize {
			if blockIndex, ok := idx.match(rw.Sum(), data[i:end]); ok {
				if i > literalStart {
					if err := writeDataOp(w, data[literalStart:i]); err != nil {
						return err
					}
				}

				if err := writeCopyOp(w, blockIndex); err != nil {
					return err
				}

				i = end
				literalStart = i

				if i < n {
					newEnd := i + blockSize
					if newEnd > n {
						newEnd = n
					}

					rw = newRollingWindow(data[i:newEnd])
				}

				continue
			}
		}

		// Slide the window forward by one byte: drop data[i], pick up the
		// byte that enters the window at the back (or 0 past EOF, matching
		// a shrinking final window).
		next := i + blockSize
		var incoming byte
		if next < n {
			incoming = data[next]
		}

		rw.Roll(data[i], incoming)
		i++
	}

	if literalStart < n {
		if err := writeDataOp(w, data[literalStart:n]); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("rsyncdelta: flushing delta: %w", err)
	}

	return nil
}

func writeCopyOp(w io.Writer, blockIndex int) error {
	if _, err := w.Write([]byte{opCopy}); err != nil {
		return fmt.Errorf("rsyncdelta: writing copy op: %w", err)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(blockIndex)); err != nil { //nolint:gosec // block index bounded by file size
		return fmt.Errorf("rsyncdelta: writing copy op: %w", err)
	}

	return nil
}

func writeDataOp(w io.Writer, data []byte) error {
	if _, err := w.Write([]byte{opData}); err != nil {
		return fmt.Errorf("rsyncdelta: writing data op: %w", err)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil { //nolint:gosec // data length bounded by file size
		return fmt.Errorf("rsyncdelta: writing data op: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("rsyncdelta: writing data op: %w", err)
	}

	return nil
}
