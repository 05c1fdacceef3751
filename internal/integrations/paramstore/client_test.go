package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	in     *ssm.GetParameterInput
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func outputWith(value string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/z-analyst/llm-api-key"), Value: strPtr(value), Type: types.ParameterTypeSecureString,
	}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: outputWith("sk-abc")}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), " /z-analyst/llm-api-key ")
	require.NoError(t, err)
	require.Equal(t, "sk-abc", v)
	require.Equal(t, "/z-analyst/llm-api-key", *api.in.Name)
	require.True(t, *api.in.WithDecryption)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

// ---------------------------------------------------------------------------
// ResolveAPIKey
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val string
	err error
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	return f.val, f.err
}

func TestResolveAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		val     string
		want    string
		wantErr string
	}{
		{name: "raw", val: "sk-raw\n", want: "sk-raw"},
		{name: "json", val: `{"token":"sk-from-json"}`, want: "sk-from-json"},
		{name: "json missing token", val: `{"other":"value"}`, wantErr: "API token is empty"},
		{name: "malformed json", val: `{"broken`, wantErr: "unmarshal"},
		{name: "empty", val: "   ", wantErr: "API token is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ResolveAPIKey(context.Background(), &fakeGetter{val: tc.val}, "p")
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, key)
		})
	}
}

func TestResolveAPIKey_GetterError(t *testing.T) {
	_, err := ResolveAPIKey(context.Background(), &fakeGetter{err: errors.New("ssm unavailable")}, "p")
	require.ErrorContains(t, err, "ssm unavailable")

	_, err = ResolveAPIKey(context.Background(), nil, "p")
	require.Error(t, err)
}
