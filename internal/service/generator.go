// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"docqa-go/internal/config"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"docqa-go/pkg/tokenizer"
)

// Generator 基于检索到的条款调用 LLM 生成回答。
type Generator struct {
	client           llm.Client
	counter          *tokenizer.Counter
	prompt           config.LLMPromptConfig
	maxContextTokens int
	gen              *llm.GenerationParams
}

// NewGenerator 创建 Generator；counter 为 nil 时不裁剪上下文。
func NewGenerator(client llm.Client, cfg config.LLMConfig, counter *tokenizer.Counter) *Generator {
	prompt := cfg.Prompt
	if prompt.System == "" {
		prompt.System = config.DefaultSystemPrompt
	}
	return &Generator{
		client:           client,
		counter:          counter,
		prompt:           prompt,
		maxContextTokens: cfg.MaxContextTokens,
		gen:              buildGenerationParams(cfg.Generation),
	}
}

// temperature 始终显式传递，默认 0 以获得确定性的回答。
func buildGenerationParams(cfg config.LLMGenerationConfig) *llm.GenerationParams {
	t := cfg.Temperature
	gp := &llm.GenerationParams{Temperature: &t}
	if cfg.TopP != 0 {
		p := cfg.TopP
		gp.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		gp.MaxTokens = &m
	}
	return gp
}

// Messages 构建 system + user 两条消息，条款之间以空行分隔。
func (g *Generator) Messages(question string, clauses []string) []llm.Message {
	if g.counter != nil {
		clauses = g.counter.Fit(clauses, g.maxContextTokens)
	}
	contextText := strings.Join(clauses, "\n\n")
	return []llm.Message{
		{Role: "system", Content: g.prompt.System},
		{Role: "user", Content: fmt.Sprintf("Context Clauses:\n%s\n\nQuestion:\n%s", contextText, question)},
	}
}

// Answer 返回问题的回答。没有条款时返回固定提示，生成失败时返回固定的致歉文本。
func (g *Generator) Answer(ctx context.Context, question string, clauses []string) string {
	if len(clauses) == 0 {
		return g.prompt.NoResultText
	}
	answer, err := g.client.Complete(ctx, g.Messages(question, clauses), g.gen)
	if err != nil {
		log.Errorf("[Generator] 生成回答失败, question: %q, error: %v", question, err)
		return g.prompt.FailureText
	}
	return answer
}

// StreamAnswer 以流式方式生成回答，每个增量写入 w，返回完整回答。
func (g *Generator) StreamAnswer(ctx context.Context, question string, clauses []string, w llm.MessageWriter) string {
	if len(clauses) == 0 {
		return g.prompt.NoResultText
	}
	capture := &answerCapture{next: w}
	if err := g.client.StreamChatMessages(ctx, g.Messages(question, clauses), g.gen, capture); err != nil {
		log.Errorf("[Generator] 流式生成回答失败, question: %q, error: %v", question, err)
		return g.prompt.FailureText
	}
	return strings.TrimSpace(capture.sb.String())
}

// answerCapture 拦截 writer 以捕获完整答案。
type answerCapture struct {
	next llm.MessageWriter
	sb   strings.Builder
}

func (c *answerCapture) WriteMessage(messageType int, data []byte) error {
	c.sb.Write(data)
	return c.next.WriteMessage(messageType, data)
}
