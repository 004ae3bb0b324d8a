// Package grpcserver exposes slot listing and booking over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated stubs.
package grpcserver

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "booking.v1.AvailabilityService"

// Engine is the subset of *booking.Engine served over gRPC.
type Engine interface {
	ListAvailableSlots(ctx context.Context, q booking.SlotQuery) ([]availability.Slot, error)
	BookAppointment(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
}

type AvailabilityServer interface {
	ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Book(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	engine Engine
}

func Register(grpcServer *grpc.Server, engine Engine) {
	grpcServer.RegisterService(&serviceDesc, &server{engine: engine})
}

func (s *server) ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields(req)
	slots, err := s.engine.ListAvailableSlots(ctx, booking.SlotQuery{
		OrganizationID: f.str("organization_id"),
		ServiceID:      f.str("service_id"),
		Assignee:       model.Owner{Type: model.OwnerType(f.str("assignee_type")), ID: f.str("assignee_id")},
		Date:           f.str("date"),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(slots))
	for _, slot := range slots {
		items = append(items, map[string]any{
			"start_time": slot.Start.UTC().Format(time.RFC3339),
			"end_time":   slot.End.UTC().Format(time.RFC3339),
		})
	}
	return structpb.NewStruct(map[string]any{"slots": items})
}

func (s *server) Book(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields(req)
	start, err := time.Parse(time.RFC3339, f.str("start_time"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start_time must be RFC3339")
	}

	res, err := s.engine.BookAppointment(ctx, booking.BookRequest{
		OrganizationID: f.str("organization_id"),
		ServiceID:      f.str("service_id"),
		Assignee:       model.Owner{Type: model.OwnerType(f.str("assignee_type")), ID: f.str("assignee_id")},
		StartTime:      start,
		CustomerID:     f.str("customer_id"),
		Customer: booking.CustomerInput{
			Email:  f.str("customer_email"),
			Name:   f.str("customer_name"),
			Phone:  f.str("customer_phone"),
			Fields: f.strMap("custom_fields"),
		},
		Title:       f.str("title"),
		Description: f.str("description"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"appointment_id": res.AppointmentID,
		"customer_id":    res.CustomerID,
		"start_time":     res.StartTime.UTC().Format(time.RFC3339),
		"end_time":       res.EndTime.UTC().Format(time.RFC3339),
		"status":         string(res.Status),
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrSlotUnavailable):
		return status.Error(codes.Aborted, "requested time is no longer available")
	case errors.Is(err, errs.ErrTransientStore), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Unavailable, "temporarily unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

type structFields map[string]*structpb.Value

func fields(s *structpb.Struct) structFields {
	if s == nil {
		return nil
	}
	return s.GetFields()
}

func (f structFields) str(key string) string {
	if v, ok := f[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func (f structFields) strMap(key string) map[string]string {
	v, ok := f[key]
	if !ok || v.GetStructValue() == nil {
		return nil
	}
	out := make(map[string]string, len(v.GetStructValue().GetFields()))
	for k, inner := range v.GetStructValue().GetFields() {
		out[k] = inner.GetStringValue()
	}
	return out
}

func listSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).ListSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListSlots"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).ListSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func bookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).Book(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Book"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).Book(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: listSlotsHandler},
		{MethodName: "Book", Handler: bookHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/availability.proto",
}
