package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// 摘要模板中的具名槽位
const (
	SlotCurrentLogs   = "CURRENT_LOGS"
	SlotPastQuestions = "PAST_QUESTIONS"
)

// ErrUnboundSlot 模板引用了未绑定的槽位
var ErrUnboundSlot = errors.New("unbound template slot")

// RenderTemplate 渲染 {NAME} 形式的槽位
// 槽位名只允许大写字母、数字和下划线，其余花括号文本原样保留；
// 多余的绑定忽略，缺失的绑定返回 ErrUnboundSlot。
func RenderTemplate(tmpl string, bindings map[string]string) (string, error) {
	var result strings.Builder
	result.Grow(len(tmpl))

	var missing []string
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			if name, width, ok := scanSlot(tmpl[i:]); ok {
				if val, bound := bindings[name]; bound {
					result.WriteString(val)
				} else {
					missing = append(missing, name)
				}
				i += width
				continue
			}
		}
		result.WriteByte(tmpl[i])
		i++
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnboundSlot, strings.Join(dedupe(missing), ", "))
	}
	return result.String(), nil
}

// Slots 返回模板中出现的槽位（去重，保持出现顺序）
func Slots(tmpl string) []string {
	var names []string
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if name, width, ok := scanSlot(tmpl[i:]); ok {
			names = append(names, name)
			i += width - 1
		}
	}
	return dedupe(names)
}

// HasSlot 模板是否包含指定槽位
func HasSlot(tmpl, name string) bool {
	for _, s := range Slots(tmpl) {
		if s == name {
			return true
		}
	}
	return false
}

// scanSlot s 以 '{' 开头时尝试解析一个槽位，返回槽位名和占用的字节数
func scanSlot(s string) (string, int, bool) {
	end := strings.IndexByte(s, '}')
	if end <= 1 {
		return "", 0, false
	}
	name := s[1:end]
	for j := 0; j < len(name); j++ {
		c := name[j]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return "", 0, false
		}
	}
	return name, end + 1, true
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
