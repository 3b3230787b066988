package memory

import (
	"context"
	"fmt"

	"spai/internal/domain/prompt"
	applog "spai/internal/platform/log"
)

// Summarizer 将对话记录渲染进摘要模板并调用 LLM 生成记忆
type Summarizer struct {
	model        LanguageModel
	systemPrompt string
	userTemplate string
}

// NewSummarizer 创建摘要生成器
func NewSummarizer(model LanguageModel, systemPrompt, userTemplate string) *Summarizer {
	return &Summarizer{
		model:        model,
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
	}
}

// Summarize 根据编号对话记录生成摘要
// pastQuestions 为空时 {PAST_QUESTIONS} 渲染为空串；模板不含该槽位时忽略。
func (s *Summarizer) Summarize(ctx context.Context, transcript, pastQuestions string) (string, error) {
	userPrompt, err := prompt.RenderTemplate(s.userTemplate, map[string]string{
		prompt.SlotCurrentLogs:   transcript,
		prompt.SlotPastQuestions: pastQuestions,
	})
	if err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}

	applog.Debug("[Summary/LLM] Prompt built",
		"prompt_length", len(userPrompt),
		"prompt_preview", applog.Preview(userPrompt, 300),
		"has_past_questions", pastQuestions != "",
	)

	summary, err := s.model.Generate(ctx, s.systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	applog.Info("[Summary/LLM] ✅ Summary generated",
		"summary_length", len(summary),
		"summary_preview", applog.Preview(summary, 300),
	)
	return summary, nil
}
