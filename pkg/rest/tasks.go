package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/tasks"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/retry"
)

func (c *client) GetTaskStatus(ctx context.Context, taskID string) (tasks.Status, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath(taskID, "status"), nil)
	if err != nil {
		return tasks.Status{}, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return tasks.Status{}, err
	}
	defer resp.Body.Close()

	status := tasks.Status{}
	if err := unmarshalJsonResponse(
		resp, &status,
		MessageFor{
			Status4xx: fmt.Sprintf("no such task (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return tasks.Status{}, err
	}

	return status, nil
}

func (c *client) WaitForTask(ctx context.Context, taskID string, backoff retry.Backoff) (tasks.Status, error) {
	return retry.Blocking(ctx, backoff, func() (tasks.Status, error) {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return tasks.Status{}, err
		}
		if !status.Terminal() {
			return status, retry.ErrRetry
		}
		return status, nil
	})
}
