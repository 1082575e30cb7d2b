package llmgateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/llmgateway"
)

type fakeProvider struct {
	responses []func() (*llmgateway.CompletionResponse, error)
	calls     int
}

func (f *fakeProvider) Complete(_ context.Context, _ llmgateway.CompletionRequest) (*llmgateway.CompletionResponse, error) {
	fn := f.responses[f.calls]
	f.calls++
	return fn()
}
func (f *fakeProvider) CountTokens(_ []llmgateway.Message) (int, error) { return 0, nil }
func (f *fakeProvider) Capabilities() llmgateway.Capabilities            { return llmgateway.Capabilities{} }

func TestGateway_Complete_RetriesRateLimitThenSucceeds(t *testing.T) {
	p := &fakeProvider{responses: []func() (*llmgateway.CompletionResponse, error){
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeLLMRateLimit, "too many requests")
		},
		func() (*llmgateway.CompletionResponse, error) {
			return &llmgateway.CompletionResponse{Content: "ok"}, nil
		},
	}}
	gw := llmgateway.New(p, p, 1)
	resp, err := gw.Complete(context.Background(), llmgateway.CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 2, p.calls)
}

func TestGateway_Complete_DoesNotRetryOtherNonTransientError(t *testing.T) {
	p := &fakeProvider{responses: []func() (*llmgateway.CompletionResponse, error){
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeParseFailure, "malformed json")
		},
	}}
	gw := llmgateway.New(p, p, 3)
	_, err := gw.Complete(context.Background(), llmgateway.CompletionRequest{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeParseFailure))
	require.Equal(t, 1, p.calls)
}

func TestGateway_Complete_ContextTooLong_ShrinksAndRetriesOnce(t *testing.T) {
	msgs := []llmgateway.Message{{Content: "first"}, {Content: "second"}, {Content: "third"}}
	p := &fakeProvider{responses: []func() (*llmgateway.CompletionResponse, error){
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeContextTooLong, "too long")
		},
		func() (*llmgateway.CompletionResponse, error) {
			return &llmgateway.CompletionResponse{Content: "ok"}, nil
		},
	}}
	gw := llmgateway.New(p, p, 0)
	resp, err := gw.Complete(context.Background(), llmgateway.CompletionRequest{Messages: msgs})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 2, p.calls)
}

func TestGateway_Complete_ContextTooLong_StillFailingAfterShrinkReturnsError(t *testing.T) {
	p := &fakeProvider{responses: []func() (*llmgateway.CompletionResponse, error){
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeContextTooLong, "too long")
		},
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeContextTooLong, "still too long")
		},
	}}
	gw := llmgateway.New(p, p, 0)
	_, err := gw.Complete(context.Background(), llmgateway.CompletionRequest{Messages: []llmgateway.Message{{Content: "x"}}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeContextTooLong))
	require.Equal(t, 2, p.calls)
}

func TestGateway_CompleteWithTools_RequiresTools(t *testing.T) {
	p := &fakeProvider{}
	gw := llmgateway.New(p, p, 0)
	_, err := gw.CompleteWithTools(context.Background(), llmgateway.CompletionRequest{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationError))
}

func TestGateway_Complete_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	p := &fakeProvider{responses: []func() (*llmgateway.CompletionResponse, error){
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeLLMTimeout, "slow")
		},
		func() (*llmgateway.CompletionResponse, error) {
			return nil, apperrors.New(apperrors.CodeLLMTimeout, "slow")
		},
	}}
	gw := llmgateway.New(p, p, 1)
	_, err := gw.Complete(context.Background(), llmgateway.CompletionRequest{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLMTimeout))
	require.Equal(t, 2, p.calls)
}
