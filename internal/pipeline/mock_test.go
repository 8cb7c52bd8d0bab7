package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/civiclens/appeals-cli/pkg/analysis"
)

// --- Analysis Service Mock ---

type mockAnalysisClient struct {
	mock.Mock
}

func (m *mockAnalysisClient) Preprocess(ctx context.Context, req analysis.PreprocessRequest) (*analysis.PreprocessResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.PreprocessResponse), args.Error(1)
}

func (m *mockAnalysisClient) Cluster(ctx context.Context, req analysis.ClusterRequest) (*analysis.ClusterResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.ClusterResponse), args.Error(1)
}

func (m *mockAnalysisClient) Evaluate(ctx context.Context, req analysis.EvaluateRequest) (*analysis.EvaluateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.EvaluateResponse), args.Error(1)
}

func (m *mockAnalysisClient) ExtractKeywords(ctx context.Context, req analysis.ExtractKeywordsRequest) (*analysis.ExtractKeywordsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.ExtractKeywordsResponse), args.Error(1)
}

func (m *mockAnalysisClient) Download(ctx context.Context, filename string) ([]byte, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockAnalysisClient) LoadState(ctx context.Context) (*analysis.StateResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.StateResponse), args.Error(1)
}

// --- Ensure interface compliance ---
var _ analysis.Client = (*mockAnalysisClient)(nil)
