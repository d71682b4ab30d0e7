package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a worker's BuildService.
type Client struct {
	submit *connect.Client[structpb.Struct, structpb.Struct]
	get    *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient returns a Client for the worker at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		submit: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+SubmitBuildProcedure, opts...),
		get:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetReceiptProcedure, opts...),
	}
}

// SubmitBuild submits a raw job description and returns the accepted job id.
func (c *Client) SubmitBuild(ctx context.Context, payload []byte) (string, error) {
	var msg structpb.Struct
	if err := protojson.Unmarshal(payload, &msg); err != nil {
		return "", err
	}
	resp, err := c.submit.CallUnary(ctx, connect.NewRequest(&msg))
	if err != nil {
		return "", err
	}
	return resp.Msg.GetFields()["jobId"].GetStringValue(), nil
}

// GetReceipt fetches the receipt and transition trail of a job.
func (c *Client) GetReceipt(ctx context.Context, orgID, jobID string) (*ReceiptView, error) {
	msg, err := structpb.NewStruct(map[string]any{"orgId": orgID, "jobId": jobID})
	if err != nil {
		return nil, err
	}
	resp, err := c.get.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}

	data, err := protojson.Marshal(resp.Msg)
	if err != nil {
		return nil, err
	}
	var view ReceiptView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return &view, nil
}
