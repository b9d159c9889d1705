// Package rest talks to a DLHub service.
package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/tasks"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/config/profiles"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/retry"
)

type Client interface {
	// PublishServable submits a servable description and its files.
	//
	// The document is validated locally, its files are packed into one
	// archive and everything is streamed to the service. The returned
	// Progress reports packing progress and, once the service replies,
	// the receipt identifying the publication task.
	//
	// Args
	//
	// - context.Context
	//
	// - metadata.Document: the description to publish. The caller's
	// document is not modified.
	//
	// Returns
	//
	// - Progress[tasks.Receipt]: live progress; Result() carries the
	// task receipt after Done() is closed.
	PublishServable(ctx context.Context, doc metadata.Document) Progress[tasks.Receipt]

	// Run invokes a published servable.
	//
	// Args
	//
	// - context.Context
	//
	// - string: username of the servable's owner
	//
	// - string: name of the servable
	//
	// - any: inputs, as the servable's input type expects
	//
	// - ...RunOption: parameters, debug flag, pre-flight input check
	//
	// Returns
	//
	// - json.RawMessage: the servable's prediction, undecoded
	//
	// - error
	Run(ctx context.Context, owner string, name string, inputs any, options ...RunOption) (json.RawMessage, error)

	// ListServables fetches the descriptions of every visible servable.
	ListServables(ctx context.Context) ([]metadata.Document, error)

	// DescribeServable fetches the newest description of one servable.
	//
	// Args
	//
	// - context.Context
	//
	// - string: username of the servable's owner
	//
	// - string: name of the servable
	//
	// Returns
	//
	// - metadata.Document: the latest publication of that servable
	//
	// - error: ErrServableNotFound if nothing matches.
	DescribeServable(ctx context.Context, owner string, name string) (metadata.Document, error)

	// GetTaskStatus asks how a submitted task is doing.
	GetTaskStatus(ctx context.Context, taskID string) (tasks.Status, error)

	// WaitForTask polls a task with the given backoff until it stops
	// moving, then returns its final status.
	//
	// Args
	//
	// - context.Context: cancelling it stops the polling.
	//
	// - string: task to watch
	//
	// - retry.Backoff: how long to wait between polls
	WaitForTask(ctx context.Context, taskID string, backoff retry.Backoff) (tasks.Status, error)
}

type client struct {
	httpclient *http.Client
	api        string
	token      string
}

// NewClient builds a Client for the service a profile points at.
//
// # Args
//
// - *profiles.Profile
//
// # Return
//
// - Client: created client
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func NewClient(prof *profiles.Profile) (Client, error) {
	if err := prof.Verify(); err != nil {
		return nil, err
	}
	httpclient := new(http.Client)

	if prof.Cert.CA != "" {
		hc, err := trustCa(httpclient, []string{prof.Cert.CA})
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	c := &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(prof.ApiRoot, "/"),
		token:      prof.Token,
	}

	return c, nil
}

// build URL with path
func (c *client) apipath(path ...string) string {
	path = utils.Map(path, func(p string) string {
		return strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/")
	})

	return strings.Join(append([]string{c.api}, path...), "/")
}

// newRequest builds a request carrying the profile's bearer token.
func (c *client) newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) <= 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		rootcas = x509.NewCertPool()
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, err
		}

		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, fmt.Errorf("failed to add cert")
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
