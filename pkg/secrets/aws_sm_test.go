package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSM struct {
	secrets map[string]string
	failGet error
}

func newFakeSM() *fakeSM {
	return &fakeSM{secrets: map[string]string{}}
}

func (f *fakeSM) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	v, ok := f.secrets[*in.SecretId]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func (f *fakeSM) CreateSecret(_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if _, ok := f.secrets[*in.Name]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("exists")}
	}
	f.secrets[*in.Name] = *in.SecretString
	return &secretsmanager.CreateSecretOutput{Name: in.Name}, nil
}

func (f *fakeSM) PutSecretValue(_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if _, ok := f.secrets[*in.SecretId]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	f.secrets[*in.SecretId] = *in.SecretString
	return &secretsmanager.PutSecretValueOutput{Name: in.SecretId}, nil
}

func TestAWSProvider_GetSecret(t *testing.T) {
	sm := newFakeSM()
	sm.secrets["prod/sfx/realm/user"] = `{"clear_password":"tok"}`
	p := NewAWSProviderWithClient(sm)

	got, err := p.GetSecret(context.Background(), "prod/sfx/realm/user")
	require.NoError(t, err)
	assert.Equal(t, "tok", got["clear_password"])
}

func TestAWSProvider_GetSecretNotFound(t *testing.T) {
	p := NewAWSProviderWithClient(newFakeSM())

	_, err := p.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSProvider_GetSecretFailure(t *testing.T) {
	sm := newFakeSM()
	sm.failGet = errors.New("throttled")
	p := NewAWSProviderWithClient(sm)

	_, err := p.GetSecret(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "throttled")
}

func TestAWSProvider_GetSecretInvalidJSON(t *testing.T) {
	sm := newFakeSM()
	sm.secrets["bad"] = "not-json"
	p := NewAWSProviderWithClient(sm)

	_, err := p.GetSecret(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid secret format")
}

func TestAWSProvider_CreateThenPut(t *testing.T) {
	sm := newFakeSM()
	p := NewAWSProviderWithClient(sm)
	ctx := context.Background()

	require.NoError(t, p.CreateSecret(ctx, "s", map[string]string{"clear_password": "one"}))
	require.Error(t, p.CreateSecret(ctx, "s", map[string]string{"clear_password": "dup"}))

	require.NoError(t, p.PutSecret(ctx, "s", map[string]string{"clear_password": "two"}))
	got, err := p.GetSecret(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "two", got["clear_password"])
}

func TestAWSProvider_PutMissing(t *testing.T) {
	p := NewAWSProviderWithClient(newFakeSM())

	err := p.PutSecret(context.Background(), "missing", map[string]string{"clear_password": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
