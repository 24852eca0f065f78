package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/demand-desk/internal/auth"
	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/reporting"
	"github.com/rl1809/demand-desk/internal/core/service"
)

const (
	reportServiceName = "demand.v1.ReportService"

	// CodecName is the content-subtype clients must request.
	CodecName = "json"
)

// jsonCodec carries the report messages as JSON on the gRPC transport.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ReconcileInventoryRequest struct {
	FiscalYear string `json:"fiscalYear"`
}

type ReconcileInventoryResponse struct {
	FiscalYear string                  `json:"fiscalYear"`
	Items      []domain.ReconciledItem `json:"items"`
}

type AggregateClinicalRequest struct {
	FiscalYear string `json:"fiscalYear"`
	Month      string `json:"month"`
}

type AggregateClinicalResponse struct {
	Matrix reporting.Matrix `json:"matrix"`
}

type NextFormNumberRequest struct {
	FiscalYear string `json:"fiscalYear"`
}

type NextFormNumberResponse struct {
	FiscalYear string `json:"fiscalYear"`
	FormNo     int    `json:"formNo"`
}

type ReportServiceServer interface {
	ReconcileInventory(context.Context, *ReconcileInventoryRequest) (*ReconcileInventoryResponse, error)
	AggregateClinical(context.Context, *AggregateClinicalRequest) (*AggregateClinicalResponse, error)
	NextFormNumber(context.Context, *NextFormNumberRequest) (*NextFormNumberResponse, error)
}

type GRPCHandler struct {
	demands    *service.DemandService
	reports    *service.ReportService
	fiscalYear string
}

func NewGRPCHandler(demands *service.DemandService, reports *service.ReportService, fiscalYear string) *GRPCHandler {
	return &GRPCHandler{demands: demands, reports: reports, fiscalYear: fiscalYear}
}

func (h *GRPCHandler) year(fy string) string {
	if fy == "" {
		return h.fiscalYear
	}
	return fy
}

func (h *GRPCHandler) ReconcileInventory(ctx context.Context, req *ReconcileInventoryRequest) (*ReconcileInventoryResponse, error) {
	fy := h.year(req.FiscalYear)
	items, err := h.reports.InventoryReport(ctx, fy)
	if err != nil {
		return nil, status.Error(codes.Internal, "load inventory")
	}
	return &ReconcileInventoryResponse{FiscalYear: fy, Items: items}, nil
}

func (h *GRPCHandler) AggregateClinical(ctx context.Context, req *AggregateClinicalRequest) (*AggregateClinicalResponse, error) {
	if req.Month == "" {
		return nil, status.Error(codes.InvalidArgument, "month is required")
	}
	m, err := h.reports.ClinicalReport(ctx, h.year(req.FiscalYear), req.Month)
	if err != nil {
		return nil, status.Error(codes.Internal, "load patients")
	}
	return &AggregateClinicalResponse{Matrix: m}, nil
}

func (h *GRPCHandler) NextFormNumber(ctx context.Context, req *NextFormNumberRequest) (*NextFormNumberResponse, error) {
	fy := h.year(req.FiscalYear)
	n, err := h.demands.NextFormNumber(ctx, fy)
	if err != nil {
		return nil, status.Error(codes.Internal, "list requests")
	}
	return &NextFormNumberResponse{FiscalYear: fy, FormNo: n}, nil
}

func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&reportServiceDesc, srv)
}

var reportServiceDesc = grpc.ServiceDesc{
	ServiceName: reportServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ReconcileInventory",
			Handler: unaryHandler("ReconcileInventory", func(srv ReportServiceServer, ctx context.Context, in *ReconcileInventoryRequest) (any, error) {
				return srv.ReconcileInventory(ctx, in)
			}),
		},
		{
			MethodName: "AggregateClinical",
			Handler: unaryHandler("AggregateClinical", func(srv ReportServiceServer, ctx context.Context, in *AggregateClinicalRequest) (any, error) {
				return srv.AggregateClinical(ctx, in)
			}),
		},
		{
			MethodName: "NextFormNumber",
			Handler: unaryHandler("NextFormNumber", func(srv ReportServiceServer, ctx context.Context, in *NextFormNumberRequest) (any, error) {
				return srv.NextFormNumber(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func fullMethod(method string) string {
	return "/" + reportServiceName + "/" + method
}

func unaryHandler[Req any](method string, call func(ReportServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReportServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReportServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReportClient calls the report service over a JSON-coded connection.
type ReportClient struct {
	cc grpc.ClientConnInterface
}

func NewReportClient(cc grpc.ClientConnInterface) *ReportClient {
	return &ReportClient{cc: cc}
}

func (c *ReportClient) ReconcileInventory(ctx context.Context, in *ReconcileInventoryRequest) (*ReconcileInventoryResponse, error) {
	out := new(ReconcileInventoryResponse)
	if err := c.cc.Invoke(ctx, fullMethod("ReconcileInventory"), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReportClient) AggregateClinical(ctx context.Context, in *AggregateClinicalRequest) (*AggregateClinicalResponse, error) {
	out := new(AggregateClinicalResponse)
	if err := c.cc.Invoke(ctx, fullMethod("AggregateClinical"), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReportClient) NextFormNumber(ctx context.Context, in *NextFormNumberRequest) (*NextFormNumberResponse, error) {
	out := new(NextFormNumberResponse)
	if err := c.cc.Invoke(ctx, fullMethod("NextFormNumber"), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// UnaryLogger logs every unary call with its status code.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// UnaryAuth requires the same bearer token as the HTTP API, sent as
// "authorization" metadata.
func UnaryAuth(tokens *auth.TokenManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		token, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok || token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		if _, err := tokens.ParseActor(token); err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}
