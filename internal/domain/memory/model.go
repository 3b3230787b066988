package memory

import (
	"context"
	"fmt"
	"strings"

	applog "spai/internal/platform/log"
	"spai/internal/provider"
)

// ProviderModel 基于 provider.Registry 的 LanguageModel 实现
type ProviderModel struct {
	registry     *provider.Registry
	providerName string
	modelName    string
	temperature  float64
	maxTokens    int
}

// ProviderModelConfig ProviderModel 配置
type ProviderModelConfig struct {
	Registry    *provider.Registry
	Provider    string
	Model       string
	Temperature float64 // 0 则不下发
	MaxTokens   int     // 0 则不下发
}

// NewProviderModel 创建 LanguageModel
func NewProviderModel(cfg ProviderModelConfig) *ProviderModel {
	applog.Info("[Memory/Model] Language model configured",
		"provider", cfg.Provider,
		"model", cfg.Model,
	)
	return &ProviderModel{
		registry:     cfg.Registry,
		providerName: cfg.Provider,
		modelName:    cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}
}

// Generate 以 system + user 两条消息调用 LLM，返回去除首尾空白的文本
func (m *ProviderModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	llmProvider, err := m.registry.Get(m.providerName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	req := &provider.CompletionRequest{
		Model:       m.modelName,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, provider.Message{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, provider.Message{Role: "user", Content: userPrompt})

	applog.Debug("[Memory/Model] Calling LLM...",
		"provider", m.providerName,
		"model", m.modelName,
		"prompt_length", len(userPrompt),
	)

	resp, err := llmProvider.Complete(ctx, req)
	if err != nil {
		applog.Error("[Memory/Model] ❌ LLM call failed",
			"provider", m.providerName,
			"model", m.modelName,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	return strings.TrimSpace(resp.Content), nil
}

var _ LanguageModel = (*ProviderModel)(nil)
