package chat

import (
	"fmt"
	"strings"
)

// smartTurnThreshold 超过该轮数的会话路由到更强的模型
const smartTurnThreshold = 10

// faqShapedLimit FAQ 形态问题的最大长度
const faqShapedLimit = 200

// faqMarkers FAQ 形态问题的特征短语，路由到更便宜的模型
var faqMarkers = []string{
	"what is",
	"what are",
	"what does",
	"explain",
	"how do i",
	"how to",
}

// complexityMarkers 任务复杂度特征短语，路由到更强的模型
var complexityMarkers = []string{
	"step by step",
	"compare",
	"recommend",
	"design",
	"architecture",
	"migrate",
}

// SelectModel 按启发式选择模型
// 这是成本控制启发式而非分类器，边界情况一律偏向更便宜的模型
func (s *Service) SelectModel(message string, turnCount int) string {
	msg := strings.ToLower(message)

	if turnCount > smartTurnThreshold {
		return s.cfg.SmartModel
	}

	if len(msg) <= faqShapedLimit {
		for _, marker := range faqMarkers {
			if strings.Contains(msg, marker) {
				return s.cfg.FastModel
			}
		}
	}

	for _, marker := range complexityMarkers {
		if strings.Contains(msg, marker) {
			return s.cfg.SmartModel
		}
	}

	return s.cfg.FastModel
}

// systemPromptBase 静态指令块
const systemPromptBase = `You are the built-in assistant of a secrets management platform. ` +
	`You help users organize projects and environments, name and rotate API keys, ` +
	`and follow security best practices. You only ever see secret names and their ` +
	`environments, never secret values. Never ask for, guess, or repeat secret values.`

// BuildSystemPrompt 由合并后的会话上下文构建系统提示词
// 上下文仅包含组织名、项目名与已有密钥的名称/环境，绝不包含密钥值
func BuildSystemPrompt(context map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)

	if len(context) == 0 {
		return b.String()
	}

	var section []string
	if org, ok := context["organizationName"].(string); ok && org != "" {
		section = append(section, fmt.Sprintf("Organization: %s", org))
	}
	if project, ok := context["projectName"].(string); ok && project != "" {
		section = append(section, fmt.Sprintf("Project: %s", project))
	}
	if secrets, ok := context["existingSecrets"].([]interface{}); ok && len(secrets) > 0 {
		var names []string
		for _, raw := range secrets {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			if name == "" {
				continue
			}
			if env, _ := entry["environment"].(string); env != "" {
				names = append(names, fmt.Sprintf("%s (%s)", name, env))
			} else {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			section = append(section, "Existing secrets: "+strings.Join(names, ", "))
		}
	}

	if len(section) > 0 {
		b.WriteString("\n\nCurrent workspace:\n")
		b.WriteString(strings.Join(section, "\n"))
	}

	return b.String()
}
