package mediatype

import (
	"sort"
	"strings"
)

// ParseAccept 解析 Accept 头并按协商优先级排序。
//
// 排序规则：特异度层级降序（完整类型带参数 > 完整类型 > type/* > */*），
// 同层级内按 q 值降序，q 值相同时保持原始顺序（稳定排序）。
// 无法解析的子句被丢弃；空头部等价于 "*/*"。
func ParseAccept(header string) []MediaType {
	header = strings.TrimSpace(header)
	if header == "" {
		return []MediaType{New("*", "*")}
	}

	clauses := splitClauses(header)
	out := make([]MediaType, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		mt, err := Parse(clause)
		if err != nil {
			continue
		}
		out = append(out, mt)
	}
	if len(out) == 0 {
		return []MediaType{New("*", "*")}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Precedence(), out[j].Precedence()
		if pi != pj {
			return pi > pj
		}
		return out[i].Quality > out[j].Quality
	})
	return out
}

// splitClauses 在引号感知的前提下按逗号切分 Accept 头。
// 参数值可能是带引号的字符串，内部的逗号不是子句分隔符。
func splitClauses(s string) []string {
	var (
		out      []string
		start    int
		inQuotes bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case '\\':
			if inQuotes && i+1 < len(s) {
				i++
			}
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
