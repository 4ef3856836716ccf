package rsyncdelta

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Patch applies a delta (produced by Delta against basePath's signature) to
// basePath, producing the reconstructed content in a newly created temp
// file, and returns that file's path.
func Patch(basePath, deltaPath string) (outPath string, err error) {
	base, err := os.Open(basePath)
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: opening base %s: %w", basePath, err)
	}
	defer base.Close()

	deltaFile, err := os.Open(deltaPath)
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: opening delta %s: %w", deltaPath, err)
	}
	defer deltaFile.Close()

	out, err := os.CreateTemp("", "s3rsync-patch-*")
	if err != nil {
		return "", fmt.Errorf("rsyncdelta: creating patch temp file: %w", err)
	}
	defer out.Close()

	if err := applyDelta(base, deltaFile, out); err != nil {
		os.Remove(out.Name())
		return "", err
	}

	return out.Name(), nil
}

func applyDelta(base io.ReaderAt, delta io.Reader, out io.Writer) error {
	r := bufio.NewReader(delta)
	w := bufio.NewWriter(out)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("rsyncdelta: reading delta header: %w", err)
	}

	if magic != deltaMagic {
		return fmt.Errorf("rsyncdelta: not a recognized delta stream")
	}

	for {
		op, err := r.ReadByte()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("rsyncdelta: reading op: %w", err)
		}

		switch op {
		case opCopy:
			if err := applyCopyOp(base, r, w); err != nil {
				return err
			}
		case opData:
			if err := applyDataOp(r, w); err != nil {
				return err
			}
		default:
			return fmt.Errorf("rsyncdelta: unknown delta op %d", op)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("rsyncdelta: flushing patch output: %w", err)
	}

	return nil
}

func applyCopyOp(base io.ReaderAt, r io.Reader, w io.Writer) error {
	var blockIndex uint32
	if err := binary.Read(r, binary.BigEndian, &blockIndex); err != nil {
		return fmt.Errorf("rsyncdelta: reading copy op: %w", err)
	}

	buf := make([]byte, DefaultBlockSize)
	offset := int64(blockIndex) * int64(DefaultBlockSize)

	n, err := base.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("rsyncdelta: reading base block %d: %w", blockIndex, err)
	}

	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("rsyncdelta: writing copied block: %w", err)
	}

	return nil
}

func applyDataOp(r io.Reader, w io.Writer) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("rsyncdelta: reading data op: %w", err)
	}

	if _, err := io.CopyN(w, r, int64(length)); err != nil {
		return fmt.Errorf("rsyncdelta: copying literal data: %w", err)
	}

	return nil
}
