package ai

import "strings"

type compatibleVendor struct {
	baseURL       string
	handlePayload func(ChatPayload) ChatPayload
	modelFilter   func(id string) bool
}

// compatibleVendors are providers served by the OpenAI-compatible runtime.
var compatibleVendors = map[string]compatibleVendor{
	"openai": {
		baseURL:     "https://api.openai.com/v1",
		modelFilter: openAIChatModel,
	},
	"deepseek":     {baseURL: "https://api.deepseek.com/v1"},
	"groq":         {baseURL: "https://api.groq.com/openai/v1"},
	"moonshot":     {baseURL: "https://api.moonshot.cn/v1", handlePayload: halveTemperature},
	"qwen":         {baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", handlePayload: clampQwenTemperature},
	"zhipu":        {baseURL: "https://open.bigmodel.cn/api/paas/v4", handlePayload: halveTemperature},
	"mistral":      {baseURL: "https://api.mistral.ai/v1", handlePayload: halveTemperature},
	"openrouter":   {baseURL: "https://openrouter.ai/api/v1"},
	"togetherai":   {baseURL: "https://api.together.xyz/v1"},
	"perplexity":   {baseURL: "https://api.perplexity.ai"},
	"siliconcloud": {baseURL: "https://api.siliconflow.cn/v1"},
	"xai":          {baseURL: "https://api.x.ai/v1"},
}

// IsCompatibleProvider reports whether provider uses the OpenAI-compatible runtime.
func IsCompatibleProvider(provider string) bool {
	_, ok := compatibleVendors[provider]
	return ok
}

// These vendors accept temperature in [0, 1] while clients send [0, 2].
func halveTemperature(p ChatPayload) ChatPayload {
	if p.Temperature != nil {
		t := *p.Temperature / 2
		p.Temperature = &t
	}
	return p
}

// Qwen rejects temperature outside [0, 2).
func clampQwenTemperature(p ChatPayload) ChatPayload {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature >= 2) {
		p.Temperature = nil
	}
	return p
}

func openAIChatModel(id string) bool {
	if strings.Contains(id, "embedding") || strings.Contains(id, "whisper") ||
		strings.Contains(id, "tts") || strings.Contains(id, "dall-e") {
		return false
	}
	return strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "o1") ||
		strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4") || strings.HasPrefix(id, "chatgpt")
}
