package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/tasks"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/archive"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/schemas"
)

// Progress follows a publication: first packing files into an archive,
// then streaming everything to the service.
type Progress[T any] interface {
	// EstimatedTotalSize returns the total size of files to be archived.
	//
	// This is estimated and not compressed size.
	EstimatedTotalSize() int64

	// ProgressedSize returns the size of archived files.
	//
	// This size is updated during archiving.
	ProgressedSize() int64

	// ProgressingFile returns the file name which is currently being archived.
	ProgressingFile() string

	// Error returns an error caused during archiving or sending.
	Error() error

	// Result returns the service's reply.
	//
	// # Returns
	//
	// - T: the reply.
	//
	// - bool: true if the reply has arrived.
	Result() (T, bool)

	// Done returns a channel which is closed when the whole operation is over.
	Done() <-chan struct{}

	// Sent returns a channel which is closed when the data has been sent.
	Sent() <-chan struct{}
}

type progress[T any] struct {
	p        archive.Progress
	e        error
	result   T
	resultOk bool
	done     chan struct{}
	sent     chan struct{}
}

func (p *progress[T]) EstimatedTotalSize() int64 {
	if p.p == nil {
		return 0
	}
	return p.p.EstimatedTotalSize()
}

func (p *progress[T]) ProgressedSize() int64 {
	if p.p == nil {
		return 0
	}
	return p.p.ProgressedSize()
}

func (p *progress[T]) ProgressingFile() string {
	if p.p == nil {
		return ""
	}
	return p.p.ProgressingFile()
}

func (p *progress[T]) Error() error {
	if p.p != nil {
		if err := p.p.Error(); err != nil {
			return err
		}
	}
	return p.e
}

func (p *progress[T]) Result() (T, bool) {
	return p.result, p.resultOk
}

func (p *progress[T]) Done() <-chan struct{} {
	return p.done
}

func (p *progress[T]) Sent() <-chan struct{} {
	return p.sent
}

// failed returns a Progress that was over before it began.
func failed[T any](err error) *progress[T] {
	done := make(chan struct{})
	close(done)
	sent := make(chan struct{})
	close(sent)
	return &progress[T]{e: err, done: done, sent: sent}
}

func (c *client) PublishServable(ctx context.Context, doc metadata.Document) Progress[tasks.Receipt] {
	// work on a private copy; files get relocated below and the
	// caller's document should not notice
	doc, err := deepCopy(doc)
	if err != nil {
		return failed[tasks.Receipt](err)
	}

	if err := schemas.Validate(doc, string(doc.Dlhub.Type)); err != nil {
		return failed[tasks.Receipt](err)
	}

	doc.Dlhub.TransferMethod = map[string]string{"POST": "file"}

	files := doc.Dlhub.Files.List()
	if 0 < len(files) {
		base, err := metadata.CommonBase(files)
		if err != nil {
			return failed[tasks.Receipt](err)
		}
		if err := doc.Dlhub.Files.Relocate(base); err != nil {
			return failed[tasks.Receipt](err)
		}
	}

	dlhubJson, err := json.Marshal(doc)
	if err != nil {
		return failed[tasks.Receipt](err)
	}

	ctx, cancel := context.WithCancel(ctx)

	zr, zw := io.Pipe()
	prog := &progress[tasks.Receipt]{
		sent: make(chan struct{}),
		done: make(chan struct{}),
		p:    archive.GoZip(ctx, files, zw),
	}

	go func() {
		<-prog.p.Done()
		if err := prog.p.Error(); err != nil {
			cancel()
			zw.Close()
		}
	}()

	r, w := io.Pipe()
	mpw := multipart.NewWriter(w)

	go func() {
		werr := func() error {
			jsonPart, err := mpw.CreateFormFile("json", "dlhub.json")
			if err != nil {
				return err
			}
			if _, err := jsonPart.Write(dlhubJson); err != nil {
				return err
			}

			zipPart, err := mpw.CreateFormFile("file", "servable.zip")
			if err != nil {
				return err
			}
			if _, err := io.Copy(zipPart, zr); err != nil {
				return err
			}
			<-prog.p.Done()
			if err := prog.p.Error(); err != nil {
				return err
			}
			return mpw.Close()
		}()

		zr.CloseWithError(werr)
		w.CloseWithError(werr)
		if werr == nil {
			close(prog.sent)
		}
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.apipath("publish"), r)
	if err != nil {
		cancel()
		prog.e = err
		close(prog.done)
		return prog
	}
	req.Header.Set("Content-Type", mpw.FormDataContentType())

	go func() {
		defer close(prog.done)
		defer cancel()
		defer r.Close()

		resp, err := c.httpclient.Do(req)
		if err != nil {
			prog.e = err
			return
		}
		defer resp.Body.Close()

		res := tasks.Receipt{}
		if err := unmarshalJsonResponse(
			resp, &res,
			MessageFor{
				Status4xx: fmt.Sprintf("publication is rejected by server (status code = %d)", resp.StatusCode),
				Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
			},
		); err != nil {
			prog.e = err
			return
		}

		prog.result = res
		prog.resultOk = true
	}()

	return prog
}

func deepCopy(doc metadata.Document) (metadata.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return metadata.Document{}, err
	}
	out := metadata.Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return metadata.Document{}, err
	}
	return out, nil
}
