package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestJSONCodec_PlainStruct(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(LoginRequest{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@x.com","password":"pw"}`, string(data))

	var got LoginRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, "a@x.com", got.Email)
}

func TestJSONCodec_ProtoMessage(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"SERVING"`)

	var got healthpb.HealthCheckResponse
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got.GetStatus())
}
