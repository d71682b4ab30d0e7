package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/queue"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
)

// BuildService RPC procedures. Messages are google.protobuf.Struct values
// carrying the same JSON documents as the push endpoint.
const (
	BuildServiceName = "verticalbuilder.v1.BuildService"

	SubmitBuildProcedure = "/" + BuildServiceName + "/SubmitBuild"
	GetReceiptProcedure  = "/" + BuildServiceName + "/GetReceipt"
)

// NewBuildServiceHandler builds an HTTP handler for the BuildService RPCs and
// returns the path to mount it on.
func NewBuildServiceHandler(svc *BuildService, opts ...connect.HandlerOption) (string, http.Handler) {
	submit := connect.NewUnaryHandler(SubmitBuildProcedure, svc.SubmitBuild, opts...)
	get := connect.NewUnaryHandler(GetReceiptProcedure, svc.GetReceipt, opts...)
	return "/" + BuildServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SubmitBuildProcedure:
			submit.ServeHTTP(w, r)
		case GetReceiptProcedure:
			get.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SubmitBuild accepts a job description.
func (s *BuildService) SubmitBuild(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	payload, err := protojson.Marshal(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	d, err := s.Accept(payload)
	if err != nil {
		return nil, connectError(err)
	}

	out, err := structpb.NewStruct(map[string]any{"status": "accepted", "jobId": d.JobID})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// GetReceipt returns {"receipt": ..., "transitions": [...]} for the orgId and
// jobId in the request.
func (s *BuildService) GetReceipt(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	orgID := fields["orgId"].GetStringValue()
	jobID := fields["jobId"].GetStringValue()

	rec, transitions, err := s.Receipt(ctx, orgID, jobID)
	if err != nil {
		return nil, connectError(err)
	}

	out, err := receiptStruct(rec, transitions)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode receipt: %w", err))
	}
	return connect.NewResponse(out), nil
}

// ReceiptView is the GetReceipt response document.
type ReceiptView struct {
	Receipt     *receipt.Receipt     `json:"receipt"`
	Transitions []receipt.Transition `json:"transitions"`
}

func receiptStruct(rec *receipt.Receipt, transitions []receipt.Transition) (*structpb.Struct, error) {
	data, err := json.Marshal(ReceiptView{Receipt: rec, Transitions: transitions})
	if err != nil {
		return nil, err
	}
	var out structpb.Struct
	if err := protojson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, ErrRejected):
		return connect.NewError(connect.CodeUnavailable, err)
	case berrors.IsInvalidInput(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case berrors.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
