package handler

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"identity-service/backend/internal/db/dbtest"
	"identity-service/backend/internal/identity/service"
	"identity-service/backend/internal/security"
	"identity-service/backend/internal/server/interceptors"
	"identity-service/backend/internal/store"
)

// dialAuth serves auth over bufconn with the request and api key interceptors and returns a client.
func dialAuth(t *testing.T, auth AuthAPI, logger *zap.Logger) *AuthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors.RequestUnary(), interceptors.APIKeyUnary()))
	RegisterAuthServiceServer(srv, NewAuthServer(auth, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewAuthClient(conn)
}

func TestAuthServer_NilService(t *testing.T) {
	srv := NewAuthServer(nil, nil)
	_, err := srv.Register(context.Background(), &RegisterRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	_, err = srv.Me(context.Background(), &MeRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestAuthServer_PassesRequestFields(t *testing.T) {
	fake := &fakeAuth{}
	client := dialAuth(t, fake, nil)
	ctx := context.Background()

	reg, err := client.Register(ctx, &RegisterRequest{
		Name: "Alice", Phone: "+15551234567", Email: "a@x.com", Password: "secretpw", Origin: 1, Device: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "101910251", reg.PublicID)
	assert.Equal(t, service.RegisteredMessage, reg.Message)
	assert.Equal(t, service.RegisterInput{
		Name: "Alice", Phone: "+15551234567", Email: "a@x.com", Password: "secretpw", Origin: 1, Device: 10,
	}, fake.register)

	_, err = client.Login(ctx, &LoginRequest{Email: "a@x.com", Password: "secretpw"})
	require.NoError(t, err)
	assert.Equal(t, [2]string{"a@x.com", "secretpw"}, fake.loginWith)

	soc, err := client.Social(ctx, &SocialRequest{
		Provider: "google", Type: "oauth", ProviderID: "g-1", Email: "b@x.com", Device: 20, PhotoURL: "https://p", Name: "Bob",
	})
	require.NoError(t, err)
	assert.True(t, soc.Created)
	assert.Equal(t, "key", soc.APIKey)
	assert.Equal(t, "https://p", fake.social.PhotoURL)

	renewed, err := client.Renew(ctx, "my-key")
	require.NoError(t, err)
	assert.Equal(t, "my-key", fake.apiKey)
	assert.Equal(t, "tok2", renewed.Token)

	me, err := client.Me(ctx, "other-key")
	require.NoError(t, err)
	assert.Equal(t, "other-key", fake.apiKey)
	require.Len(t, me.Identities, 1)
	assert.Equal(t, "google", me.Identities[0].Provider)
}

func TestAuthServer_ErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{"invalid argument", service.ErrInvalidDevice, codes.InvalidArgument, service.ErrInvalidDevice.Error()},
		{"conflict", service.ErrEmailAlreadyRegistered, codes.AlreadyExists, "email already registered"},
		{"linked", service.ErrAlreadyLinked, codes.AlreadyExists, "already linked to another user"},
		{"unauthorized", service.ErrInvalidCredentials, codes.Unauthenticated, service.ErrInvalidCredentials.Error()},
		{"forbidden", service.ErrUnknownAPIKey, codes.PermissionDenied, "api key not recognized"},
		{"exhausted", oops.Code("AUTH_REGISTER_FAILED").Wrap(security.ErrAllocationExhausted), codes.Internal, "internal error"},
		{"other", errors.New("connection reset by peer"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			client := dialAuth(t, &fakeAuth{err: tt.err}, zap.New(core))
			_, err := client.Register(context.Background(), &RegisterRequest{})
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
			if tt.code == codes.Internal {
				require.Equal(t, 1, logs.Len())
				assert.NotEmpty(t, logs.All()[0].ContextMap()["request_id"])
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestAuthServer_MissingAPIKey(t *testing.T) {
	svc := service.NewAuthService(store.NewSQLite(dbtest.NewSQLite(t)), security.NewTestHasher(), security.NewTestTokenProvider(nil))
	client := dialAuth(t, svc, nil)

	_, err := client.Renew(context.Background(), "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = client.Me(context.Background(), "unknown")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

// The whole flow through the gRPC binding and a real SQLite store.
func TestAuthServer_EndToEnd(t *testing.T) {
	svc := service.NewAuthService(store.NewSQLite(dbtest.NewSQLite(t)), security.NewTestHasher(), security.NewTestTokenProvider(nil))
	client := dialAuth(t, svc, nil)
	ctx := context.Background()

	reg, err := client.Register(ctx, &RegisterRequest{
		Name: "Alice", Phone: "+15551234567", Email: "a@x.com", Password: "secretpw", Origin: 1, Device: 10,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^10\d{6}\d+$`, reg.PublicID)

	_, err = client.Register(ctx, &RegisterRequest{
		Name: "Alice", Phone: "+15551234567", Email: "other@x.com", Password: "secretpw", Origin: 1, Device: 10,
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = client.Login(ctx, &LoginRequest{Email: "a@x.com", Password: "wrong-pw"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	login, err := client.Login(ctx, &LoginRequest{Email: "a@x.com", Password: "secretpw"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	soc, err := client.Social(ctx, &SocialRequest{
		Provider: "Google", Type: "OAuth", ProviderID: "g-1", Email: "a@x.com", Device: 10, Name: "Alice",
	})
	require.NoError(t, err)
	assert.False(t, soc.Created)
	assert.True(t, soc.Linked)
	assert.Equal(t, login.APIKey, soc.APIKey)

	me, err := client.Me(ctx, login.APIKey)
	require.NoError(t, err)
	assert.Equal(t, reg.PublicID, me.PublicID)
	require.Len(t, me.Identities, 1)
	assert.Equal(t, "google", me.Identities[0].Provider)

	renewed, err := client.Renew(ctx, login.APIKey)
	require.NoError(t, err)
	assert.Equal(t, reg.PublicID, renewed.PublicID)
}
