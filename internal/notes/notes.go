// Package notes 把共享笔记（Etherpad 导出的 notes.html）转换为纯文本。
package notes

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// FileName 是导出纯文本在输出目录中的文件名。
const FileName = "notes.txt"

var blockTags = map[string]bool{
	"p": true, "div": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "tr": true, "table": true,
}

// ExtractText 返回 body 的纯文本：
// - <br> 与块级元素换行；<li> 以 "- " 开头
// - script/style/head 被忽略
// - 连续空行折叠为一行；结果为空时返回 ""
func ExtractText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "解析 notes.html 失败")
	}

	var b strings.Builder
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	walk(&b, body.Contents())
	return normalize(b.String()), nil
}

func walk(b *strings.Builder, sel *goquery.Selection) {
	sel.Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "#text":
			b.WriteString(strings.ReplaceAll(s.Text(), "\u00a0", " "))
			return
		case "#comment", "script", "style", "head", "title":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
		block := blockTags[name]
		if block {
			b.WriteByte('\n')
		}
		if name == "li" {
			b.WriteString("\n- ")
		}
		walk(b, s.Contents())
		if block {
			b.WriteByte('\n')
		}
	})
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, ln := range lines {
		ln = strings.TrimRight(ln, " \t\r")
		if strings.TrimSpace(ln) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, ln)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
