package rsyncdelta

import (
	"bufio"
	"crypto/md5" //nolint:gosec // rsync strong checksum, not a security boundary
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// sigMagic identifies a signature file produced by this package.
var sigMagic = [4]byte{'s', '3', 'r', 's'}

// blockSignature is one block's weak + strong checksum pair, in block order.
type blockSignature struct {
	Weak   uint32
	Strong [StrongSumSize]byte
}

// Signature computes an rsync signature over basePath and writes it to a
// newly created temp file, returning that file's path. Block size and
// strong-sum length are the package defaults.
func Signature(basePath string) (sigPath string, err error) {
	base, err := os.Open(basePath)
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: opening base %s: %w", basePath, err)
	}
	defer base.Close()

	out, err := os.CreateTemp("", "s3rsync-sig-*")
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: creating signature temp file: %w", err)
	}
	defer out.Close()

	if err := writeSignature(base, out); err != nil {
		os.Remove(out.Name())
		return "", err
	}

	return out.Name(), nil
}

func writeSignature(base io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)

	if _, err := w.Write(sigMagic[:]); err != nil {
		return fmt.Errorf("rsyncdelta: writing signature header: %w", err)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(DefaultBlockSize)); err != nil {
		return fmt.Errorf("rsyncdelta: writing signature header: %w", err)
	}

	buf := make([]byte, DefaultBlockSize)
	r := bufio.NewReader(base)

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := writeBlockSignature(w, buf[:n]); err != nil {
				return err
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}

		if readErr != nil {
			return fmt.Errorf("rsyncdelta: reading base: %w", readErr)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("rsyncdelta: flushing signature: %w", err)
	}

	return nil
}

func writeBlockSignature(w io.Writer, block []byte) error {
	weak := rollingChecksum(block)
	strong := md5.Sum(block) //nolint:gosec // rsync strong checksum, not a security boundary

	if err := binary.Write(w, binary.BigEndian, weak); err != nil {
		return fmt.Errorf("rsyncdelta: writing block signature: %w", err)
	}

	if _, err := w.Write(strong[:StrongSumSize]); err != nil {
		return fmt.Errorf("rsyncdelta: writing block signature: %w", err)
	}

	return nil
}

// readSignature parses a signature file into its block size and ordered
// list of block signatures.
func readSignature(path string) (blockSize int, sigs []blockSignature, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("rsyncdelta: opening signature %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("rsyncdelta: reading signature header: %w", err)
	}

	if magic != sigMagic {
		return 0, nil, fmt.Errorf("rsyncdelta: %s is not a recognized signature file", path)
	}

	var bs uint32
	if err := binary.Read(r, binary.BigEndian, &bs); err != nil {
		return 0, nil, fmt.Errorf("rsyncdelta: reading signature header: %w", err)
	}

	for {
		var sig blockSignature

		if err := binary.Read(r, binary.BigEndian, &sig.Weak); err != nil {
			if err == io.EOF {
				break
			}

			return 0, nil, fmt.Errorf("rsyncdelta: reading block signature: %w", err)
		}

		if _, err := io.ReadFull(r, sig.Strong[:]); err != nil {
			return 0, nil, fmt.Errorf("rsyncdelta: reading block signature: %w", err)
		}

		sigs = append(sigs, sig)
	}

	return int(bs), sigs, nil
}
