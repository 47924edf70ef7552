package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	batches [][]string
	invalid []string
	err     error
}

func (f *fakeSSM) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, in.Names)
	out := &ssm.GetParametersOutput{InvalidParameters: f.invalid}
	for _, name := range in.Names {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String("value-of-" + name),
		})
	}
	return out, nil
}

func TestSSMProvider_Batches(t *testing.T) {
	client := &fakeSSM{}
	p := newSSMProviderWithClient("us-east-1", client)

	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/p/%d", i)
	}

	got, err := p.GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)

	assert.Len(t, got, 23)
	assert.Equal(t, "value-of-/p/7", got["/p/7"])
	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 10)
	assert.Len(t, client.batches[2], 3)
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSM{})

	got, err := p.GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSM{invalid: []string{"/p/missing"}})

	_, err := p.GetParametersBatch(context.Background(), []string{"/p/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/p/missing")
}

func TestSSMProvider_ClientError(t *testing.T) {
	boom := errors.New("access denied")
	p := newSSMProviderWithClient("us-east-1", &fakeSSM{err: boom})

	_, err := p.GetParametersBatch(context.Background(), []string{"/p/a"})
	assert.ErrorIs(t, err, boom)
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	client := &fakeSSM{}
	p := newSSMProviderWithClient("us-east-1", client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetParametersBatch(ctx, []string{"/p/a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.batches)
}

func TestEnvVarProvider(t *testing.T) {
	p := &EnvVarProvider{lookup: func(k string) (string, bool) {
		if k == "PRESENT" {
			return "yes", true
		}
		return "", false
	}}

	got, err := p.GetParametersBatch(context.Background(), []string{"PRESENT", "ABSENT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PRESENT": "yes"}, got)
}

func TestProvidersSatisfyInterface(t *testing.T) {
	var _ SecretProvider = NewEnvVarProvider()
	var _ SecretProvider = NewSSMProvider("us-east-1", "")
}

func TestNewBuildInfo(t *testing.T) {
	info := NewBuildInfo()
	assert.Equal(t, version, info.Version)
	assert.Equal(t, commit, info.Commit)
	assert.Equal(t, buildTime, info.BuildTime)
}
