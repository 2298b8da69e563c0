package Transformer

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// cpg 文件中常见的代码页写法
var codePageAliases = map[string]string{
	"65001":     "utf-8",
	"1252":      "windows-1252",
	"1256":      "windows-1256",
	"cp1256":    "windows-1256",
	"28596":     "iso-8859-6",
	"88596":     "iso-8859-6",
	"936":       "gbk",
	"54936":     "gb18030",
	"gb-18030":  "gb18030",
	"ansi 1256": "windows-1256",
}

// TextDecoder 将 dbf 中的原始字节转为 UTF-8；enc 为 nil 时按 UTF-8 原样处理
type TextDecoder struct {
	Label string
	enc   encoding.Encoding
}

// NewTextDecoder 优先使用 cpg 声明的编码，否则对样本做编码识别
func NewTextDecoder(cpg string, sample []string) *TextDecoder {
	label := normalizeLabel(cpg)
	if label == "" {
		label = detectCharset(sample)
	}
	d := &TextDecoder{Label: label}
	if label == "" || label == "utf-8" {
		return d
	}
	if enc, err := htmlindex.Get(label); err == nil {
		d.enc = enc
	}
	return d
}

// Decode 解码单个值；解码失败时返回原文
func (d *TextDecoder) Decode(s string) string {
	if d.enc == nil || isASCII(s) {
		return s
	}
	out, err := d.enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if alias, ok := codePageAliases[label]; ok {
		return alias
	}
	return label
}

// detectCharset 样本为合法 UTF-8 时直接采用，否则交给 chardet
func detectCharset(sample []string) string {
	var buf []byte
	for _, s := range sample {
		if !isASCII(s) {
			buf = append(buf, s...)
			buf = append(buf, ' ')
		}
	}
	if len(buf) == 0 || utf8.Valid(buf) {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err != nil || result == nil {
		return ""
	}
	return normalizeLabel(result.Charset)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
