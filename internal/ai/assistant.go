// Package ai is the text-completion collaborator: text in, text out. The
// room engine treats it as opaque and offloads every call so dispatch is
// never blocked on the network.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// Assistant prompts. The platform teaches Python to a Traditional Chinese
// classroom; prompts and fallback texts follow the client's language.
const (
	systemRole = "你是一個專業的Python程式設計助教，專門協助學生學習程式設計。請用繁體中文回答，語氣要友善且具教育性。"

	analysisPrompt = "請分析這段Python程式碼，提供建設性的回饋和學習建議。"
	debugPrompt    = "請檢查這段Python程式碼是否有錯誤，並提供修正建議。"
	improvePrompt  = "請提供這段Python程式碼的改進建議，讓程式碼更優雅、更有效率。"
	guidePrompt    = "在協作程式設計環境中，請提供團隊程式設計的建議和指導。"

	conflictSystemRole = "你是一位經驗豐富的程式設計助教，專門協助學生解決協作程式設計中的衝突問題。請提供實用、友善的建議，並使用清楚的段落格式。"
)

// Error codes surfaced in ai_response envelopes.
const (
	ErrDisabled      = "ai_disabled"
	ErrEmptyCode     = "empty_code"
	ErrUnknownAction = "unknown_action"
	ErrFailed        = "ai_processing_failed"
)

// Completer is the minimal text-in/text-out contract. It exists so tests
// can substitute the OpenAI-backed implementation.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

type openaiCompleter struct {
	client *openai.Client
	model  string
}

func (o *openaiCompleter) Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Assistant resolves ai_request actions against a Completer.
type Assistant struct {
	completer Completer
	cfg       config.AIConfig
	logger    zerolog.Logger
}

// New builds an Assistant from configuration. When no API key is set the
// Assistant stays usable but answers every action with a disabled notice
// (or, for conflict analysis, a canned offline playbook).
func New(cfg config.AIConfig, logger zerolog.Logger) *Assistant {
	a := &Assistant{cfg: cfg, logger: logger.With().Str("component", "ai").Logger()}
	if cfg.Enabled {
		a.completer = &openaiCompleter{client: openai.NewClient(cfg.APIKey), model: cfg.Model}
	}
	return a
}

// NewWithCompleter is the test seam.
func NewWithCompleter(cfg config.AIConfig, c Completer, logger zerolog.Logger) *Assistant {
	return &Assistant{completer: c, cfg: cfg, logger: logger}
}

// Handle resolves one ai_request to a response text and an error code
// (empty on success). It never returns a Go error: failures become
// user-facing text, matching the collaborator contract.
func (a *Assistant) Handle(ctx context.Context, req *protocol.AIRequest, userName, roomID string) (response, errCode string) {
	metrics.AIRequests.WithLabelValues(req.Action).Inc()
	start := time.Now()
	defer func() { metrics.AILatency.Observe(time.Since(start).Seconds()) }()

	action := canonicalAction(req.Action)

	if action == actionConflict {
		return a.analyzeConflict(ctx, req, userName, roomID)
	}

	if a.completer == nil {
		return "🚫 AI 助教功能未啟用或 API 密鑰未設定。請聯繫管理員配置 OpenAI API 密鑰。", ErrDisabled
	}

	code := req.Data.Code
	if strings.TrimSpace(code) == "" {
		return "📝 請先在編輯器中輸入一些 Python 程式碼，然後再使用 AI 助教功能進行分析。", ErrEmptyCode
	}

	var prompt string
	switch action {
	case actionExplain:
		prompt = analysisPrompt
	case actionCheck:
		prompt = debugPrompt
	case actionImprove:
		prompt = improvePrompt
	case actionGuide:
		prompt = fmt.Sprintf("%s\n\n在協作程式設計環境中，目前的程式碼是：\n\n%s\n\n情境：%s\n\n請提供協作指導建議。", guidePrompt, code, roomID)
		return a.complete(ctx, systemRole, prompt, a.cfg.MaxTokens, a.cfg.Temperature)
	default:
		return fmt.Sprintf("❓ 未知的 AI 請求類型: %s。支援的功能：解釋程式(explain_code/analyze)、檢查錯誤(check_errors/check)、改進建議(improve_code/suggest)、衝突協助(conflict_resolution/resolve)、協作指導(collaboration_guide)", req.Action), ErrUnknownAction
	}

	return a.complete(ctx, systemRole, prompt+"\n\n"+code, a.cfg.MaxTokens, a.cfg.Temperature)
}

func (a *Assistant) complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.completer.Complete(ctx, system, user, maxTokens, temperature)
	if err != nil {
		a.logger.Error().Err(err).Msg("completion failed")
		return "😅 抱歉，AI 助教暫時無法處理您的請求。請檢查網路連接或稍後再試。如果問題持續，請聯繫管理員。", ErrFailed
	}
	return resp, ""
}

// analyzeConflict answers conflict_analysis requests. Unlike the other
// actions it tolerates empty code and degrades to a canned playbook when
// the completer is unavailable.
func (a *Assistant) analyzeConflict(ctx context.Context, req *protocol.AIRequest, userName, roomID string) (string, string) {
	d := req.Data
	conflictUser := d.ConflictUser
	if conflictUser == "" {
		conflictUser = userName
	}
	room := d.RoomID
	if room == "" {
		room = roomID
	}

	if a.completer == nil {
		return conflictFallback(conflictUser), ""
	}

	userCode := d.UserCode
	if userCode == "" {
		userCode = "# (目前是空白代碼)"
	}
	serverCode := d.ServerCode
	if serverCode == "" {
		serverCode = "# (同學的代碼)"
	}

	prompt := fmt.Sprintf(`作為Python程式設計助教，請分析以下協作衝突情況並提供解決建議：

**協作衝突情況：**
- 房間：%s
- 衝突同學：%s
- 我的版本：%d
- 同學版本：%d

**我的程式碼：**
`+"```python\n%s\n```"+`

**同學的程式碼：**
`+"```python\n%s\n```"+`

請提供：
1. 協作衝突的原因分析
2. 兩個版本的差異比較（如果有代碼的話）
3. 具體的協作解決建議
4. 如何避免未來的協作衝突

請用繁體中文回答，使用清楚的段落和標題格式，語氣要友善且具教育性。即使代碼為空也要提供有用的協作建議。`,
		room, conflictUser, d.UserVersion, d.ServerVersion, userCode, serverCode)

	maxTokens := a.cfg.MaxTokens
	if maxTokens > 1500 {
		maxTokens = 1500
	}
	resp, errCode := a.complete(ctx, conflictSystemRole, prompt, maxTokens, 0.3)
	if errCode != "" {
		// Degrade to the offline playbook rather than a bare failure.
		return conflictFallback(conflictUser), ""
	}
	return resp, ""
}

func conflictFallback(conflictUser string) string {
	return fmt.Sprintf(`🤖 **協作衝突分析**

**🔍 衝突原因：**
%s正在同時修改程式碼，形成協作衝突。

**💡 解決建議：**
1. **即時溝通：** 在聊天室與%s討論
2. **選擇版本：** 比較雙方的修改，選擇更好的版本
3. **協作分工：** 將不同功能分配給不同同學
4. **手動合併：** 結合兩個版本的優點

**🚀 預防措施：**
- 修改前先在聊天室告知其他同學
- 使用註解標記自己負責的部分
- 頻繁保存和同步程式碼`, conflictUser, conflictUser)
}

// Canonical action names; the web client sends several aliases per action.
const (
	actionExplain  = "explain_code"
	actionCheck    = "check_errors"
	actionImprove  = "improve_code"
	actionConflict = "conflict_analysis"
	actionGuide    = "collaboration_guide"
)

func canonicalAction(action string) string {
	switch action {
	case "explain_code", "analyze":
		return actionExplain
	case "check_errors", "check":
		return actionCheck
	case "improve_code", "suggest", "improvement_tips":
		return actionImprove
	case "conflict_resolution", "conflict_analysis", "resolve":
		return actionConflict
	case "collaboration_guide":
		return actionGuide
	default:
		return action
	}
}
