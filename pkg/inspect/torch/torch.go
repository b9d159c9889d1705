// Package torch probes PyTorch checkpoint files.
package torch

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

var ErrNotCheckpoint = errors.New("not a torch checkpoint")

// Container formats a checkpoint can come in.
const (
	ContainerZip    = "zip"
	ContainerLegacy = "legacy"
)

// Checkpoint is what a probe learns about a saved model file.
type Checkpoint struct {
	// Container is ContainerZip for the torch.save zip format,
	// ContainerLegacy for the older bare pickle stream.
	Container string

	// Version is the serialization format version recorded in the zip
	// container's "version" record. Empty for legacy checkpoints.
	Version string
}

// Probe inspects the checkpoint at p. Only ".pt" and ".pth" files are
// accepted.
func Probe(p string) (Checkpoint, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".pt", ".pth":
		// ok
	default:
		return Checkpoint{}, fmt.Errorf("%w: %s should end with .pt or .pth", ErrNotCheckpoint, p)
	}

	if ckpt, err := probeZip(p); err == nil {
		return ckpt, nil
	}
	return probeLegacy(p)
}

func probeZip(p string) (Checkpoint, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return Checkpoint{}, err
	}
	defer r.Close()

	ckpt := Checkpoint{Container: ContainerZip}
	for _, f := range r.File {
		if path.Base(f.Name) != "version" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Checkpoint{}, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Checkpoint{}, err
		}
		ckpt.Version = strings.TrimSpace(string(raw))
		break
	}
	return ckpt, nil
}

// legacy torch.save streams are pickle protocol 2
var legacyMagic = []byte{0x80, 0x02}

func probeLegacy(p string) (Checkpoint, error) {
	f, err := os.Open(p)
	if err != nil {
		return Checkpoint{}, err
	}
	defer f.Close()

	head := make([]byte, len(legacyMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrNotCheckpoint, p)
	}
	if head[0] != legacyMagic[0] || head[1] != legacyMagic[1] {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrNotCheckpoint, p)
	}
	return Checkpoint{Container: ContainerLegacy}, nil
}
