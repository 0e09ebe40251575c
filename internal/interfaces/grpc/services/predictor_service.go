// Package services holds the gRPC service implementations.
package services

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

const (
	// PredictorServiceName is the fully qualified gRPC service name.
	PredictorServiceName = "adsorpnet.v1.Predictor"

	predictMethod      = "/" + PredictorServiceName + "/Predict"
	predictBatchMethod = "/" + PredictorServiceName + "/PredictBatch"
	getMethod          = "/" + PredictorServiceName + "/GetPrediction"
)

// PredictRequest is the Predict request message.
type PredictRequest struct {
	Measurements  domain.Measurements `json:"measurements"`
	ApproximateWs bool                `json:"approx_ws,omitempty"`
	Regeneration  *bool               `json:"regeneration,omitempty"`
}

func (r *PredictRequest) input() *app.PredictInput {
	return &app.PredictInput{
		Measurements:  r.Measurements,
		ApproximateWs: r.ApproximateWs,
		Regeneration:  r.Regeneration,
	}
}

// PredictResponse carries the completed recipe.
type PredictResponse struct {
	Recipe *domain.Recipe `json:"recipe"`
}

// PredictBatchRequest is the PredictBatch request message.
type PredictBatchRequest struct {
	Items []*PredictRequest `json:"items"`
}

// GetPredictionRequest selects a stored recipe.
type GetPredictionRequest struct {
	ID string `json:"id"`
}

// PredictorServer is the server API of adsorpnet.v1.Predictor.
type PredictorServer interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	PredictBatch(ctx context.Context, req *PredictBatchRequest) (*app.BatchOutput, error)
	GetPrediction(ctx context.Context, req *GetPredictionRequest) (*PredictResponse, error)
}

// PredictorService implements PredictorServer over the application service.
type PredictorService struct {
	svc    app.Service
	logger logging.Logger
}

func NewPredictorService(svc app.Service, logger logging.Logger) *PredictorService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PredictorService{svc: svc, logger: logger.Named("predictor_grpc")}
}

func (s *PredictorService) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	r, err := s.svc.Predict(ctx, req.input())
	if err != nil {
		return nil, mapAppError(err)
	}
	return &PredictResponse{Recipe: r}, nil
}

func (s *PredictorService) PredictBatch(ctx context.Context, req *PredictBatchRequest) (*app.BatchOutput, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "items are required")
	}
	in := &app.BatchInput{Items: make([]*app.PredictInput, len(req.Items)), Source: "grpc"}
	for i, item := range req.Items {
		if item == nil {
			return nil, status.Errorf(codes.InvalidArgument, "item %d is null", i)
		}
		in.Items[i] = item.input()
	}
	out, err := s.svc.PredictBatch(ctx, in)
	if err != nil {
		return nil, mapAppError(err)
	}
	return out, nil
}

func (s *PredictorService) GetPrediction(ctx context.Context, req *GetPredictionRequest) (*PredictResponse, error) {
	if req == nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	r, err := s.svc.GetPrediction(ctx, req.ID)
	if err != nil {
		return nil, mapAppError(err)
	}
	return &PredictResponse{Recipe: r}, nil
}

// mapAppError converts an application error to a gRPC status. The message
// keeps the "[CODE] ..." prefix so clients can recover the error code.
func mapAppError(err error) error {
	info := app.NewErrorInfo(err)
	code := errors.ErrorCode(info.Code)
	msg := err.Error()
	if errors.GetCode(err) == errors.CodeUnknown {
		msg = "[" + info.Code + "] " + msg
	}

	var c codes.Code
	switch httpStatus := errors.HTTPStatusForCode(code); {
	case code == errors.ErrCodeTimeout:
		c = codes.DeadlineExceeded
	case code == errors.ErrCodeCancelled:
		c = codes.Canceled
	case code == errors.ErrCodeValidation:
		c = codes.InvalidArgument
	case httpStatus == http.StatusNotFound:
		c = codes.NotFound
	case httpStatus == http.StatusConflict:
		c = codes.AlreadyExists
	case httpStatus == http.StatusServiceUnavailable:
		c = codes.Unavailable
	case httpStatus == http.StatusUnprocessableEntity:
		c = codes.FailedPrecondition
	case httpStatus >= 400 && httpStatus < 500:
		c = codes.InvalidArgument
	default:
		c = codes.Internal
		msg = "[" + info.Code + "] " + errors.DefaultMessageForCode(code)
	}
	return status.Error(c, msg)
}

func _Predictor_Predict_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Predictor_PredictBatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).PredictBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictBatchMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PredictorServer).PredictBatch(ctx, req.(*PredictBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Predictor_GetPrediction_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPredictionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).GetPrediction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PredictorServer).GetPrediction(ctx, req.(*GetPredictionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PredictorServiceDesc describes adsorpnet.v1.Predictor for
// grpc.Server.RegisterService.
var PredictorServiceDesc = grpc.ServiceDesc{
	ServiceName: PredictorServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: _Predictor_Predict_Handler},
		{MethodName: "PredictBatch", Handler: _Predictor_PredictBatch_Handler},
		{MethodName: "GetPrediction", Handler: _Predictor_GetPrediction_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "adsorpnet/v1/predictor",
}

// PredictorClient calls adsorpnet.v1.Predictor with the JSON codec.
type PredictorClient struct {
	cc grpc.ClientConnInterface
}

func NewPredictorClient(cc grpc.ClientConnInterface) *PredictorClient {
	return &PredictorClient{cc: cc}
}

func (c *PredictorClient) Predict(ctx context.Context, in *PredictRequest, opts ...grpc.CallOption) (*PredictResponse, error) {
	out := new(PredictResponse)
	if err := c.cc.Invoke(ctx, predictMethod, in, out, append(opts, grpc.CallContentSubtype(CodecName))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PredictorClient) PredictBatch(ctx context.Context, in *PredictBatchRequest, opts ...grpc.CallOption) (*app.BatchOutput, error) {
	out := new(app.BatchOutput)
	if err := c.cc.Invoke(ctx, predictBatchMethod, in, out, append(opts, grpc.CallContentSubtype(CodecName))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PredictorClient) GetPrediction(ctx context.Context, in *GetPredictionRequest, opts ...grpc.CallOption) (*PredictResponse, error) {
	out := new(PredictResponse)
	if err := c.cc.Invoke(ctx, getMethod, in, out, append(opts, grpc.CallContentSubtype(CodecName))...); err != nil {
		return nil, err
	}
	return out, nil
}
