package service

import (
	"encoding/json"
	"strings"

	"shop-assist-go/internal/model"
)

// CaseDirective 是生成回复末尾可选携带的结构化指令，请求为指定商品
// 建立或更新工单。
type CaseDirective struct {
	CreateCase   bool   `json:"createCase"`
	OrderID      string `json:"orderId"`
	ProductIndex int    `json:"productIndex"`
	Description  string `json:"description"`
	// Priority 可选；取值非法时忽略该字段，由分类器兜底。
	Priority string `json:"priority,omitempty"`
}

// rawDirective 用于区分“字段缺失”和“字段为零值”。
type rawDirective struct {
	CreateCase   bool    `json:"createCase"`
	OrderID      string  `json:"orderId"`
	ProductIndex *int    `json:"productIndex"`
	Description  string  `json:"description"`
	Priority     *string `json:"priority"`
}

// ExtractDirective 从生成的原始回复中解析末尾的工单指令。
//
// 只识别锚定在（去除代码围栏后的）文本最末尾的一个花括号对象，
// 避免把助手在回答中引用的示例 JSON 误认成指令。指令可能带也可能
// 不带 ``` 围栏。任何解析失败都按“没有指令”处理，绝不报错——
// 指令不是用户写的，解析失败不能影响用户看到回复。
//
// 返回值 clean 是剥掉围栏和指令后适合展示给用户的文本；没有有效指令时
// clean 即原文（仅去除首尾空白）。
func ExtractDirective(raw string) (clean string, directive *CaseDirective) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", nil
	}

	body, candidate := splitTrailingObject(text)
	if candidate == "" {
		return text, nil
	}

	d := parseDirective(candidate)
	if d == nil {
		return text, nil
	}
	return strings.TrimSpace(body), d
}

// splitTrailingObject 把文本拆成正文和末尾的候选 JSON 对象。
// 优先剥掉末尾的代码围栏；没有围栏时要求最后一个非空白字符是 '}'，
// 再向前找到与之配对的 '{'。找不到候选时第二个返回值为空串。
func splitTrailingObject(text string) (body, candidate string) {
	if strings.HasSuffix(text, "```") {
		inner := text[:len(text)-3]
		open := strings.LastIndex(inner, "```")
		if open < 0 {
			return text, ""
		}
		fenced := inner[open+3:]
		// 围栏可能带语言标记，如 ```json
		if nl := strings.IndexByte(fenced, '\n'); nl >= 0 {
			fenced = fenced[nl+1:]
		}
		return strings.TrimSpace(inner[:open]), strings.TrimSpace(fenced)
	}

	if !strings.HasSuffix(text, "}") {
		return text, ""
	}
	start := matchingBrace(text)
	if start < 0 {
		return text, ""
	}
	return strings.TrimSpace(text[:start]), text[start:]
}

// matchingBrace 从文本末尾的 '}' 向前回溯，返回与之配对的 '{' 的下标。
// 跳过字符串字面量内的花括号；配对失败返回 -1。
func matchingBrace(text string) int {
	depth := 0
	inString := false
	for i := len(text) - 1; i >= 0; i-- {
		ch := text[i]
		if ch == '"' && (i == 0 || text[i-1] != '\\') {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseDirective 校验候选对象是否为格式完整的工单指令。
func parseDirective(candidate string) *CaseDirective {
	var raw rawDirective
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil
	}
	if !raw.CreateCase || raw.OrderID == "" || raw.Description == "" {
		return nil
	}
	if raw.ProductIndex == nil || *raw.ProductIndex < 0 {
		return nil
	}

	d := &CaseDirective{
		CreateCase:   true,
		OrderID:      raw.OrderID,
		ProductIndex: *raw.ProductIndex,
		Description:  raw.Description,
	}
	if raw.Priority != nil && model.ValidPriority(*raw.Priority) {
		d.Priority = *raw.Priority
	}
	return d
}
