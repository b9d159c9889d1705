package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/search"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/logger"
)

var ErrServableNotFound = errors.New("no such servable")

type runOption struct {
	parameters map[string]any
	debug      bool
	inputType  *argtype.ArgumentType
	logger     *log.Logger
}

type RunOption func(*runOption) *runOption

// WithParameters overrides the servable's default parameters for this
// invocation.
func WithParameters(parameters map[string]any) RunOption {
	return func(o *runOption) *runOption {
		o.parameters = parameters
		return o
	}
}

// WithDebug asks the service to return stdout/stderr capture along
// with the prediction.
func WithDebug() RunOption {
	return func(o *runOption) *runOption {
		o.debug = true
		return o
	}
}

// CheckedAgainst verifies the inputs against the servable's declared
// input type before anything goes on the wire. Warnings about lossy
// matches go to logger.
func CheckedAgainst(t argtype.ArgumentType, logger *log.Logger) RunOption {
	return func(o *runOption) *runOption {
		o.inputType = &t
		o.logger = logger
		return o
	}
}

func (c *client) Run(
	ctx context.Context, owner string, name string, inputs any, options ...RunOption,
) (json.RawMessage, error) {
	opt := &runOption{}
	for _, o := range options {
		opt = o(opt)
	}

	if opt.inputType != nil {
		if err := opt.inputType.Check(inputs, opt.logger); err != nil {
			return nil, err
		}
	}

	reqBody, err := json.Marshal(map[string]any{
		"inputs":     inputs,
		"parameters": opt.parameters,
		"debug":      opt.debug,
	})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(
		ctx, http.MethodPost,
		c.apipath("servables", owner, name, "run"),
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := json.RawMessage{}
	if err := unmarshalJsonResponse(
		resp, &res,
		MessageFor{
			Status4xx: fmt.Sprintf("invocation is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}

	return res, nil
}

func (c *client) ListServables(ctx context.Context) ([]metadata.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("servables"), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	docs := make([]metadata.Document, 0, 5)
	if err := unmarshalJsonResponse(
		resp, &docs,
		MessageFor{
			Status4xx: fmt.Sprintf("[BUG] client is not compatible with the server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}

	return docs, nil
}

func (c *client) DescribeServable(ctx context.Context, owner string, name string) (metadata.Document, error) {
	docs, err := c.ListServables(ctx)
	if err != nil {
		return metadata.Document{}, err
	}

	matched := utils.Filter(docs, func(doc metadata.Document) bool {
		return doc.Dlhub.Owner == owner && doc.Dlhub.Name == name
	})
	if latest := search.FilterLatest(matched, logger.Null()); 0 < len(latest) {
		return latest[0], nil
	}
	// entries from before versioned publication carry no shorthand
	// name; with nothing to version by, the last listed one wins
	if 0 < len(matched) {
		return matched[len(matched)-1], nil
	}
	return metadata.Document{}, fmt.Errorf("%w: %s/%s", ErrServableNotFound, owner, name)
}
