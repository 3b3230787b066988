package bootstrap

import (
	"fmt"
	"strings"

	"spai/internal/adapter/provider/llm/openai"
	"spai/internal/platform/config"
	applog "spai/internal/platform/log"
	"spai/internal/provider"
)

const openAIHost = "api.openai.com"

// RegisterLLMProviders 按配置注册 OpenAI 兼容供应商
// 官方 OpenAI 必须配置 API Key；自建端点（如 Ollama /v1）允许无 Key。
func RegisterLLMProviders(reg *provider.Registry, cfg *config.AppConfig) error {
	if cfg.OpenAI.APIKey == "" && strings.Contains(cfg.OpenAI.BaseURL, openAIHost) {
		return fmt.Errorf("OPENAI_API_KEY is required for %s", cfg.OpenAI.BaseURL)
	}

	p := openai.New(openai.Config{
		Name:    cfg.LLM.Provider,
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	reg.Register(p)
	applog.Infof("✅ Registered LLM provider: %s (base: %s)", p.Name(), cfg.OpenAI.BaseURL)
	return nil
}
