package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
)

type Progress interface {
	// EstimatedTotalSize returns the total size of files to be archived.
	//
	// This is estimated and not compressed size.
	EstimatedTotalSize() int64

	// ProgressedSize returns the size of archived files.
	//
	// This size is updated during archiving.
	//
	// This is raw (not compressed) size.
	ProgressedSize() int64

	// ProgressingFile returns the file name which is currently being archived.
	ProgressingFile() string

	// Error returns error caused during archiving.
	Error() error

	// Done returns a channel which is closed when archiving is done.
	Done() <-chan struct{}

	// EstimateDone returns a channel which is closed when EstimatedTotalSize is calcurated.
	EstimateDone() <-chan struct{}
}

type progress struct {
	totalSize int64
	doneSize  int64
	file      string
	err       error
	done      chan struct{}
	estDone   chan struct{}
}

func (m *progress) EstimatedTotalSize() int64 {
	return m.totalSize
}

func (m *progress) ProgressedSize() int64 {
	return m.doneSize
}

func (m *progress) ProgressingFile() string {
	return m.file
}

func (m *progress) Error() error {
	return m.err
}

func (m *progress) Done() <-chan struct{} {
	return m.done
}

func (m *progress) EstimateDone() <-chan struct{} {
	return m.estDone
}

// CommonBase returns the directory the archive entries are rooted at.
func CommonBase(files []string) (string, error) {
	return metadata.CommonBase(files)
}

// GoZip archives files into dest as a ZIP in a background goroutine.
//
// Entries are named relative to the common base directory of all files,
// so "/home/a.pkl" and "/home/a/b.dat" become "a.pkl" and "a/b.dat".
// An empty file list yields an empty archive.
//
// If dest is an io.WriteCloser it is closed when archiving is done; that
// lets the ZIP stream feed one end of an io.Pipe.
//
// # Example
//
//	monitor := archive.GoZip(ctx, files, dest)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case <-monitor.Done():
//	        if err := monitor.Error(); err != nil {
//	            fmt.Println(err)
//	        }
//	        return
//	    case <-time.After(1 * time.Second):
//	        fmt.Printf(
//	            "progress: %d/%d (%s)\n",
//	            monitor.ProgressedSize(),
//	            monitor.EstimatedTotalSize(),
//	            monitor.ProgressingFile(),
//	        )
//	    }
//	}
func GoZip(ctx context.Context, files []string, dest io.Writer) Progress {
	started := false
	prog := &progress{
		done:    make(chan struct{}),
		estDone: make(chan struct{}),
	}

	defer func() {
		if !started {
			// the archive goroutine never runs, so close dest here;
			// otherwise a pipe reader downstream waits forever
			if c, ok := dest.(io.Closer); ok {
				c.Close()
			}
			close(prog.estDone)
			close(prog.done)
		}
	}()

	root := ""
	if 0 < len(files) {
		r, err := CommonBase(files)
		if err != nil {
			prog.err = err
			return prog
		}
		root = r

		for _, f := range files {
			if _, err := os.Stat(f); err != nil {
				prog.err = err
				return prog
			}
		}
	}

	go func() {
		// estimate size

		defer close(prog.estDone)
		for _, f := range files {
			select {
			case <-ctx.Done():
				prog.err = ctx.Err()
				return
			default:
			}
			if prog.err != nil {
				return
			}
			info, err := os.Stat(f)
			if err != nil {
				prog.err = err
				return
			}
			if info.Mode().IsRegular() {
				prog.totalSize += info.Size()
			}
		}
	}()

	started = true
	go func() {
		defer close(prog.done)
		defer func() {
			switch pan := recover().(type) {
			case nil:
				// ok
			case error:
				prog.err = pan
			case string:
				prog.err = fmt.Errorf("%s", pan)
			default:
				prog.err = fmt.Errorf("%v", pan)
			}
		}()
		defer func() {
			if c, ok := dest.(io.Closer); ok {
				c.Close()
			}
		}()

		zipWriter := zip.NewWriter(dest)
		var err error
		defer func() {
			if err == nil && recover() == nil {
				zipWriter.Close()
			}
		}()

		for _, f := range files {
			select {
			case <-ctx.Done():
				prog.err = ctx.Err()
				return
			default:
			}
			if prog.err != nil {
				return
			}

			if err = add(ctx, zipWriter, root, f, prog); err != nil {
				prog.err = err
				return
			}
		}
	}()

	return prog
}

func add(ctx context.Context, zw *zip.Writer, root string, file string, prog *progress) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	relpath, err := filepath.Rel(root, abs)
	if err != nil {
		return err
	}
	prog.file = relpath

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(relpath)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	fp, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer fp.Close()

	_, err = io.Copy(
		&reportingWriter{dest: w, prog: prog},
		&ctxReader{ctx: ctx, r: fp},
	)
	return err
}

type reportingWriter struct {
	dest io.Writer
	prog *progress
}

func (w *reportingWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.prog.doneSize += int64(n)
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
	}
	return r.r.Read(p)
}
