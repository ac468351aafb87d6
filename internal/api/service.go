package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/shiftsync/internal/actions"
	"github.com/matheus3301/shiftsync/internal/app"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/availability"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "shiftsync.v1.Shiftsync"

// CallLister reads the local call journal.
type CallLister interface {
	RecentCalls(limit int) ([]store.Call, error)
}

// Service exposes one session over gRPC.
type Service struct {
	session     *app.Session
	calls       CallLister
	profileName string
	logger      *zap.Logger
	startedAt   time.Time
}

// NewService creates the service. calls may be nil.
func NewService(session *app.Session, calls CallLister, profileName string, logger *zap.Logger) *Service {
	return &Service{
		session:     session,
		calls:       calls,
		profileName: profileName,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Register attaches the service to srv.
func (s *Service) Register(srv grpc.ServiceRegistrar) {
	srv.RegisterService(&ServiceDesc, s)
}

func (s *Service) requireRole(r feed.Role, what string) error {
	if s.session.Role() != r {
		return apperr.Invalid("role", "%s is not available to %s", what, s.session.Role())
	}
	return nil
}

func (s *Service) bus() *bus.Bus { return s.session.Bus() }

func (s *Service) GetFeed(ctx context.Context, req FeedRequest) (FeedView, error) {
	return s.feedView(ctx, req.Feed, req.Tab)
}

func (s *Service) MarkViewed(_ context.Context, _ Empty) (MarkViewedResponse, error) {
	if err := s.requireRole(feed.Worker, "jobs"); err != nil {
		return MarkViewedResponse{}, err
	}
	if err := s.session.Jobs.MarkViewed(); err != nil {
		return MarkViewedResponse{}, err
	}
	s.bus().Emit(bus.KindFeedViewed, FeedJobs)
	return MarkViewedResponse{HasNew: s.session.Jobs.HasNew()}, nil
}

func (s *Service) SetJobFilter(ctx context.Context, req JobFilterRequest) (FeedView, error) {
	if err := s.requireRole(feed.Worker, "jobs"); err != nil {
		return FeedView{}, err
	}
	s.session.Jobs.SetFilter(req.Categories)
	return s.feedView(ctx, FeedJobs, "")
}

func (s *Service) availabilityView() AvailabilityView {
	cal := s.session.Calendar
	entries := cal.Entries()
	view := AvailabilityView{Dates: make(map[string]string, len(entries)), Dirty: cal.Dirty()}
	for date, st := range entries {
		view.Dates[date] = st.String()
	}
	return view
}

func (s *Service) GetAvailability(_ context.Context, _ Empty) (AvailabilityView, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return AvailabilityView{}, err
	}
	return s.availabilityView(), nil
}

func (s *Service) ToggleAvailability(_ context.Context, req DateRequest) (AvailabilityView, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return AvailabilityView{}, err
	}
	if _, err := s.session.Calendar.Toggle(req.Date); err != nil {
		return AvailabilityView{}, err
	}
	return s.availabilityView(), nil
}

func (s *Service) SaveAvailability(_ context.Context, _ Empty) (AvailabilityView, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return AvailabilityView{}, err
	}
	if err := s.session.Calendar.Save(); err != nil {
		return AvailabilityView{}, err
	}
	s.bus().Emit(bus.KindAvailabilitySaved, nil)
	return s.availabilityView(), nil
}

func (s *Service) DiscardAvailability(_ context.Context, _ Empty) (AvailabilityView, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return AvailabilityView{}, err
	}
	s.session.Calendar.Discard()
	return s.availabilityView(), nil
}

func (s *Service) ResetAvailability(_ context.Context, _ Empty) (AvailabilityView, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return AvailabilityView{}, err
	}
	if err := s.session.Calendar.Reset(); err != nil {
		return AvailabilityView{}, err
	}
	s.bus().Emit(bus.KindAvailabilityReset, nil)
	return s.availabilityView(), nil
}

func (s *Service) ApplyRule(_ context.Context, req RuleRequest) (RuleResponse, error) {
	if err := s.requireRole(feed.Worker, "availability"); err != nil {
		return RuleResponse{}, err
	}
	cal := s.session.Calendar
	st, err := availability.ParseState(req.State)
	if err != nil {
		return RuleResponse{}, apperr.Invalid("state", "%v", err)
	}
	from, err := time.ParseInLocation(time.DateOnly, req.From, cal.Location())
	if err != nil {
		return RuleResponse{}, apperr.Invalid("from", "want YYYY-MM-DD, got %q", req.From)
	}
	until, err := time.ParseInLocation(time.DateOnly, req.Until, cal.Location())
	if err != nil {
		return RuleResponse{}, apperr.Invalid("until", "want YYYY-MM-DD, got %q", req.Until)
	}
	n, err := cal.ApplyRule(req.Rule, st, from, until)
	if err != nil {
		return RuleResponse{}, err
	}
	return RuleResponse{Applied: n, Dirty: cal.Dirty()}, nil
}

// Act sends one intent against a record the session currently mirrors.
func (s *Service) Act(ctx context.Context, req ActRequest) (ActResponse, error) {
	sess := s.session
	viewer := sess.ViewerID()
	resp := ActResponse{Intent: req.Intent, ID: req.ID}

	if req.Intent == IntentPostJob {
		if err := s.requireRole(feed.Operator, "posting jobs"); err != nil {
			return resp, err
		}
		id, err := sess.Actions.PostJob(ctx, actions.NewJob{
			OwnerID:        viewer,
			Title:          req.Title,
			RoleCategories: req.Categories,
			Location:       req.Location,
		})
		resp.ID = id
		return resp, err
	}

	if err := s.requireRole(feed.Worker, req.Intent); err != nil {
		return resp, err
	}
	if req.ID == "" {
		return resp, apperr.Invalid("id", "record id is required")
	}

	switch req.Intent {
	case IntentAccept, IntentDecline, IntentApplyShift:
		shift, ok := sess.Available.Find(req.ID)
		if !ok {
			return resp, &apperr.NotFoundError{Kind: "shift", ID: req.ID}
		}
		switch req.Intent {
		case IntentAccept:
			return resp, sess.Actions.AcceptOffer(ctx, shift, viewer)
		case IntentDecline:
			return resp, sess.Actions.DeclineOffer(ctx, shift, viewer)
		default:
			return resp, sess.Actions.ApplyToShift(ctx, shift, viewer)
		}
	case IntentCancel:
		shift, ok := sess.MyShifts.Find(req.ID)
		if !ok {
			return resp, &apperr.NotFoundError{Kind: "shift", ID: req.ID}
		}
		return resp, sess.Actions.CancelShift(ctx, shift, viewer, req.Reason)
	case IntentApplyJob:
		job, ok := sess.Jobs.Find(req.ID)
		if !ok {
			return resp, &apperr.NotFoundError{Kind: "job", ID: req.ID}
		}
		return resp, sess.Actions.ApplyToJob(ctx, job, viewer, req.Message)
	default:
		return resp, apperr.Invalid("intent", "unknown intent %q", req.Intent)
	}
}

func (s *Service) GetProfile(ctx context.Context, req ProfileRequest) (ProfileResponse, error) {
	id := req.ID
	if id == "" {
		id = s.session.ViewerID()
	}
	p, err := s.session.Profiles.Get(ctx, id)
	if err != nil {
		return ProfileResponse{}, err
	}
	return ProfileResponse{Profile: p}, nil
}

func (s *Service) ListCalls(_ context.Context, req CallsRequest) (CallsResponse, error) {
	resp := CallsResponse{Calls: []CallView{}}
	if s.calls == nil {
		return resp, nil
	}
	calls, err := s.calls.RecentCalls(req.Limit)
	if err != nil {
		return resp, err
	}
	for _, c := range calls {
		resp.Calls = append(resp.Calls, CallView{
			CallID:    c.CallID,
			Procedure: c.Procedure,
			Args:      c.Args,
			Status:    string(c.Status),
			Error:     c.ErrorMessage,
			CreatedAt: c.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) Status(_ context.Context, _ Empty) (StatusResponse, error) {
	return StatusResponse{
		Profile:  s.profileName,
		Role:     string(s.session.Role()),
		ViewerID: s.session.ViewerID(),
		Running:  s.session.Running(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
		Stores:   s.storeStatuses(),
	}, nil
}

// WatchFeed sends the feed once, then again after every bus event until the
// client goes away. Bursts of events collapse into one send.
func (s *Service) WatchFeed(req FeedRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	ch, unsub := s.bus().Subscribe("", 256)
	defer unsub()

	send := func() error {
		view, err := s.feedView(ctx, req.Feed, req.Tab)
		if err != nil {
			return ToStatus(err)
		}
		msg, err := Encode(view)
		if err != nil {
			return grpcstatus.Error(codes.Internal, err.Error())
		}
		return stream.SendMsg(msg)
	}
	if err := send(); err != nil {
		return err
	}

	for {
		select {
		case <-ch:
			drain(ch)
			if err := send(); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func drain(ch <-chan bus.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// shiftsyncServer is the handler type checked by grpc.RegisterService.
type shiftsyncServer interface {
	WatchFeed(FeedRequest, grpc.ServerStream) error
}

// ServiceDesc describes the Shiftsync service. Every message is a
// google.protobuf.Struct holding the JSON form of the request and response
// types in this package.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*shiftsyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetFeed", handle((*Service).GetFeed)),
		unary("MarkViewed", handle((*Service).MarkViewed)),
		unary("SetJobFilter", handle((*Service).SetJobFilter)),
		unary("GetAvailability", handle((*Service).GetAvailability)),
		unary("ToggleAvailability", handle((*Service).ToggleAvailability)),
		unary("SaveAvailability", handle((*Service).SaveAvailability)),
		unary("DiscardAvailability", handle((*Service).DiscardAvailability)),
		unary("ResetAvailability", handle((*Service).ResetAvailability)),
		unary("ApplyRule", handle((*Service).ApplyRule)),
		unary("Act", handle((*Service).Act)),
		unary("GetProfile", handle((*Service).GetProfile)),
		unary("ListCalls", handle((*Service).ListCalls)),
		unary("Status", handle((*Service).Status)),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchFeed",
			Handler:       watchFeedHandler,
			ServerStreams: true,
		},
	},
	Metadata: "shiftsync/v1/shiftsync.proto",
}

type structHandler func(*Service, context.Context, *structpb.Struct) (*structpb.Struct, error)

// handle adapts a typed method to the Struct wire form.
func handle[Req, Resp any](fn func(*Service, context.Context, Req) (Resp, error)) structHandler {
	return func(s *Service, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req Req
		if err := Decode(in, &req); err != nil {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := fn(s, ctx, req)
		if err != nil {
			s.logger.Debug("request failed", zap.Error(err))
			return nil, ToStatus(err)
		}
		out, err := Encode(resp)
		if err != nil {
			return nil, grpcstatus.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
}

func unary(name string, h structHandler) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				return h(srv.(*Service), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, call)
		},
	}
}

func watchFeedHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req FeedRequest
	if err := Decode(in, &req); err != nil {
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(shiftsyncServer).WatchFeed(req, stream)
}
