package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/identity/service"
	"identity-service/backend/internal/server/interceptors"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "identity.v1.AuthService"

// AuthAPI is the service the transports call. *service.AuthService implements it.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*service.TokenResult, error)
	SocialAuth(ctx context.Context, in service.SocialAuthInput) (*service.SocialResult, error)
	RenewToken(ctx context.Context, apiKey string) (*service.TokenResult, error)
	Me(ctx context.Context, apiKey string) (*service.Profile, error)
}

// AuthServiceServer is the server API for identity.v1.AuthService.
type AuthServiceServer interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error)
	Social(ctx context.Context, req *SocialRequest) (*SocialResponse, error)
	Renew(ctx context.Context, req *RenewRequest) (*TokenResponse, error)
	Me(ctx context.Context, req *MeRequest) (*ProfileResponse, error)
}

// AuthServiceDesc describes identity.v1.AuthService. Messages are JSON encoded (see CodecName).
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", AuthServiceServer.Register),
		unaryMethod("Login", AuthServiceServer.Login),
		unaryMethod("Social", AuthServiceServer.Social),
		unaryMethod("Renew", AuthServiceServer.Renew),
		unaryMethod("Me", AuthServiceServer.Me),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "identity/v1/auth",
}

// RegisterAuthServiceServer registers srv with s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthServer implements AuthServiceServer on top of AuthAPI.
type AuthServer struct {
	auth   AuthAPI
	logger *zap.Logger
}

// NewAuthServer returns a new Auth gRPC server. With a nil auth every RPC returns Unimplemented.
func NewAuthServer(auth AuthAPI, logger *zap.Logger) *AuthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthServer{auth: auth, logger: logger}
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (s *AuthServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if s.auth == nil {
		return nil, unimplemented("Register")
	}
	res, err := s.auth.Register(ctx, service.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Origin:   req.Origin,
		Device:   accountdomain.Device(req.Device),
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, "register", err)
	}
	return &RegisterResponse{PublicID: res.PublicID, Message: res.Message}, nil
}

func (s *AuthServer) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	if s.auth == nil {
		return nil, unimplemented("Login")
	}
	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(ctx, s.logger, "login", err)
	}
	return tokenToResponse(res), nil
}

func (s *AuthServer) Social(ctx context.Context, req *SocialRequest) (*SocialResponse, error) {
	if s.auth == nil {
		return nil, unimplemented("Social")
	}
	res, err := s.auth.SocialAuth(ctx, service.SocialAuthInput{
		Provider:   req.Provider,
		Type:       req.Type,
		ProviderID: req.ProviderID,
		Email:      req.Email,
		Device:     accountdomain.Device(req.Device),
		PhotoURL:   req.PhotoURL,
		Name:       req.Name,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, "social", err)
	}
	return &SocialResponse{TokenResponse: *tokenToResponse(&res.TokenResult), Created: res.Created, Linked: res.Linked}, nil
}

// Renew issues a fresh token for the api key set by interceptors.APIKeyUnary.
func (s *AuthServer) Renew(ctx context.Context, req *RenewRequest) (*TokenResponse, error) {
	if s.auth == nil {
		return nil, unimplemented("Renew")
	}
	key, _ := interceptors.GetAPIKey(ctx)
	res, err := s.auth.RenewToken(ctx, key)
	if err != nil {
		return nil, toStatus(ctx, s.logger, "renew", err)
	}
	return tokenToResponse(res), nil
}

// Me returns the profile for the api key set by interceptors.APIKeyUnary.
func (s *AuthServer) Me(ctx context.Context, req *MeRequest) (*ProfileResponse, error) {
	if s.auth == nil {
		return nil, unimplemented("Me")
	}
	key, _ := interceptors.GetAPIKey(ctx)
	res, err := s.auth.Me(ctx, key)
	if err != nil {
		return nil, toStatus(ctx, s.logger, "me", err)
	}
	return profileToResponse(res), nil
}

// AuthClient calls identity.v1.AuthService with the JSON codec.
type AuthClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, "Register", in, opts)
}

func (c *AuthClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, "Login", in, opts)
}

func (c *AuthClient) Social(ctx context.Context, in *SocialRequest, opts ...grpc.CallOption) (*SocialResponse, error) {
	return invoke[SocialResponse](ctx, c.cc, "Social", in, opts)
}

// Renew and Me send apiKey as x-api-key metadata.
func (c *AuthClient) Renew(ctx context.Context, apiKey string, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](withAPIKey(ctx, apiKey), c.cc, "Renew", &RenewRequest{}, opts)
}

func (c *AuthClient) Me(ctx context.Context, apiKey string, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](withAPIKey(ctx, apiKey), c.cc, "Me", &MeRequest{}, opts)
}

func withAPIKey(ctx context.Context, apiKey string) context.Context {
	if apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, interceptors.APIKeyHeader, apiKey)
}
