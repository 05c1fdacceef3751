package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-analyst/backend/internal/config"
	"github.com/zhouzirui/z-analyst/backend/internal/integrations/openai"
	"github.com/zhouzirui/z-analyst/backend/internal/service/ai"
)

func TestNewCompleterByProvider(t *testing.T) {
	require.IsType(t, &openai.Client{}, newCompleter(config.AIConfig{Provider: config.ProviderOpenAI}))
	require.IsType(t, &ai.ArkCompleter{}, newCompleter(config.AIConfig{Provider: config.ProviderArk, Region: "cn-beijing"}))
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
